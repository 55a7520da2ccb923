// Package file journals graph updates to a file on disk.
//
// # Overview
//
// Output is a pubsub.Subscriber. Each update is marshalled to its JSON form
// ({"kind":"add","triples":[...]}) and buffered. The buffer is written when it
// reaches BufferSize and on every FlushInterval tick, and once more on Stop.
//
// # Quick Start
//
//	out, err := file.NewOutput(file.Config{
//	    Directory:     "/var/lib/livegraph",
//	    FilePrefix:    "updates",
//	    Format:        file.FormatJSONL,
//	    Append:        true,
//	    BufferSize:    100,
//	    FlushInterval: time.Second,
//	})
//	if err := out.Start(ctx); err != nil {
//	    return err
//	}
//	defer out.Stop(5 * time.Second)
//	publisher.Subscribe("journal", out)
//
// # Formats
//
//   - jsonl: one update per line
//   - json: pretty-printed updates separated by newlines
//
// Write failures are counted and logged; they never fail HandleUpdate, so a
// full disk cannot stall publication.
package file
