// Package cipher provides the encoding layer of cryptbreak: reversible
// encode/decode operations, payload parsing, encoding detection, hash
// identification and dictionary cracking, and JWT secret cracking.
//
// # Operations
//
// Every codec is registered twice, once per direction, and the two halves
// point at each other through Reverse:
//
//	op, _ := cipher.GetOperation("base32_decode")
//	out, _ := op.Execute(ctx, []byte("JBSWY3DP"), nil)
//
// Operations chain through a Pipeline, which can also be reversed when every
// step has an inverse.
//
// # Detection
//
// EncodingDetector decodes its input with a fixed, ordered list of decoders
// (base64, base32, base16, base85, hex, url, unicode_escape, binary) and ranks
// the successful decodes by plausibility:
//
//	d := cipher.NewEncodingDetector(scoring.New())
//	for _, c := range d.DetectEncoding("SGVsbG8gV29ybGQ=", 5) {
//	    fmt.Printf("%s %.2f %q\n", c.Name, c.Score, c.Decoded)
//	}
//
// A decoder that fails is skipped silently; ErrDecode is only returned by
// calls that were asked for one specific encoding, such as ParsePayload.
//
// # Thread Safety
//
// The operation registry is safe for concurrent use and operations are
// stateless.
package cipher
