package gemini

import (
	"fmt"
	"strings"
)

// buildPrompt encodes the tagging grammar as instructions to the model. The
// model's adherence is probabilistic; the repair/validation layer is the
// enforcement mechanism, so the prompt optimizes for compliance rather than
// relying on it.
func buildPrompt(sourceLang, sourceScript, referencePassage string) string {
	var b strings.Builder

	fmt.Fprintf(&b, `Listen to the %[1]s audio file and produce an accurate, WORD-LEVEL transcription with precise timestamps.

=== OBJECTIVE ===
Generate precise %[1]s word-level transcriptions in %[2]s script with accurate timestamps.
This is a professional transcription task requiring MAXIMUM accuracy with NO post-processing or corrections.

=== CRITICAL FOUNDATION RULE ===
TRANSCRIBE EXACTLY WHAT IS SPOKEN - NOT WHAT SHOULD HAVE BEEN SPOKEN.

You MUST capture every word exactly as pronounced (including mispronunciations), every
repeated word as separate entries, every broken/partial word segment as separate entries,
every pause within a word, all speech disfluencies and false starts, and regional accents.

You MUST NOT correct mispronunciations, merge repeated words, reconstruct broken words,
normalize informal speech, fix grammar, or skip any spoken sound.
`, sourceLang, sourceScript)

	if referencePassage != "" {
		fmt.Fprintf(&b, `
=== REFERENCE PASSAGE ===
The following reference text may correspond to the audio content. Use it ONLY as a guide
for spelling, vocabulary, and context.

"%s"

CRITICAL: You MUST transcribe the ACTUAL SPOKEN WORDS from the audio. If the speaker
deviates from, skips, or adds to the reference text, transcribe what is actually said.
The reference is never ground truth for timing or word presence.
`, referencePassage)
	}

	fmt.Fprintf(&b, `
=== SPECIAL TAGS - MANDATORY USAGE ===
1. <FIL></FIL> = vocalized fillers lasting >100ms ('um', 'uh', 'hmm')
2. <NOISE></NOISE> = unintelligible/noisy/mumbled segments; a word audible through noise
   is written as <NOISE>"WORD"</NOISE>
3. <NPS></NPS> = non-primary speaker segments, timestamped accurately
4. <AI></AI> = accent-inclusive variations, transcribed exactly as pronounced
5. <IWP></IWP> = intra-word pause marker, its own zero-or-near-zero-duration entry between
   the segments of a word split by a pause >50ms

Tag usage is NOT optional wherever a rule applies.

=== MANDATORY RULES ===
RULE 1 - Script: transcribe in %[2]s script ONLY. Never transliterate, translate, or
standardize. Preserve dialect, colloquialisms, incomplete words and false starts.

RULE 2 - Timestamps: every spoken word/sound gets start and end in MM:SS.mmm format with
EXACTLY 3 decimal places. start < end for every entry. Entries chronologically ordered by
start. end never exceeds the audio duration. No overlaps between consecutive words, no
gaps beyond natural pauses, no duplicate timestamps.

RULE 3 - Segmentation: one entry per spoken word unit. Split compound words on a pause
>25ms. Never merge multiple words into one entry.

RULE 4 - Repeated words: a SEPARATE entry per occurrence with distinct timestamps.
"I I I think" is FOUR entries. Never collapse stutters.

RULE 5 - Broken words: transcribe the actual broken parts as spoken, one entry per
segment, preserving hyphens or trailing sounds ("trans-" then "cription"). Never
reconstruct the intended word.

RULE 6 - Mispronunciations: transcribe the actual pronunciation ("libary", not
"library"). Use <AI></AI> for regional variations ("gonna" for "going to").

RULE 7 - Intra-word pauses: mark each with its own <IWP></IWP> entry between the word
segments, preserving the exact pause duration in its timestamps.

RULE 8 - Quality: no null, empty, or invalid entries. Skip silence. Every entry carries
all required fields.

=== OUTPUT FORMAT - STRICT JSON SCHEMA ===

`+"```json"+`
[
{
"start": "MM:SS.mmm",
"end": "MM:SS.mmm",
"word": "word in %[2]s script OR tagged content",
"language": "%[1]s"
}
]
`+"```"+`

Examples:
{"start": "00:05.120", "end": "00:05.450", "word": "<FIL></FIL>", "language": "%[1]s"}
{"start": "00:10.500", "end": "00:11.200", "word": "<NOISE></NOISE>", "language": "%[1]s"}
{"start": "00:20.100", "end": "00:22.500", "word": "<NPS></NPS>", "language": "%[1]s"}
{"start": "00:30.300", "end": "00:30.400", "word": "<IWP></IWP>", "language": "%[1]s"}
{"start": "01:00.000", "end": "01:00.500", "word": "<AI>gonna</AI>", "language": "%[1]s"}

=== CRITICAL OUTPUT REQUIREMENTS ===
Return ONLY the JSON array wrapped in a single `+"```json```"+` code block. All four
fields on every entry. Valid JSON syntax. Exactly 3 decimal places per timestamp.
Chronological order. No explanatory text, comments, duplicate timestamps, or timestamps
past the audio duration.

NOW: process the audio and return ONLY the pure JSON array following ALL rules above.
`, sourceLang, sourceScript)

	return b.String()
}
