// Package wire implements the versioned frame protocol spoken over a
// transport's data channel: envelope encoding, chat chunking, reassembly,
// and send pacing.
//
// # Envelope Format
//
// Every frame is one JSON envelope:
//
//	{"v":2,"type":"chat","mid":"m-...","idx":0,"fin":true,"pld":{"text":"hi"}}
//
//   - v: protocol version; receivers drop frames with a foreign version
//   - type: chat, event, or command
//   - mid: message identifier shared by all chunks of one logical message
//   - idx: zero-based chunk index
//   - fin: set on the final chunk
//   - pld: the typed payload
//
// Events and commands are always single-frame (idx 0, fin true). Chat text
// may be split across frames; only the text is sliced, each chunk carries a
// complete envelope.
//
// # Chunking
//
// Codec derives a per-chunk payload budget from the frame budget minus the
// measured envelope overhead, divided by four to absorb worst-case JSON
// string escaping. Every encoded chunk is verified against the frame
// budget; violations halve the payload budget and re-split. Splitting is
// UTF-8 safe.
//
// # Reassembly
//
// Assembler accepts chunks in any order, ignores duplicates, and emits the
// logical message once chunks 0 through the fin index are present. Partial
// messages older than a TTL are evicted.
//
// # Pacing
//
// Pacer computes the minimum wall time an encoded frame must occupy under
// the outbound byte budget:
//
//	delay := pacer.Delay(len(frame), time.Since(sentAt))
//
// The final frame of a message is sent without delay.
package wire
