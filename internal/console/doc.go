// Package console is a terminal front end for a transcription session.
// Enter toggles recording; transcripts accumulate in a display buffer and
// errors replace it with an "[Error] ..." line.
package console
