// Package dedup implements the line deduplication engine behind anew.
//
// A run has two phases. The seed phase reads the optional target file once,
// records every line it holds in a membership Set and, unless running dry,
// opens the file for append. The stream phase reads newline-terminated
// records from an input stream and, for each line never seen before, appends
// it to the target file and echoes it to the output stream.
//
// Lines compare byte for byte with the terminating '\n' stripped. A final
// record without a terminator is still a line and is emitted with one.
// Output order always equals input order and each distinct line is emitted
// at most once per run, counting the seed as already emitted.
//
// The engine is single threaded and owns its Set and target file exclusively.
// Nothing guards against another process appending to the same file.
package dedup
