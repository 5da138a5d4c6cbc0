package sandbox

import "encoding/base64"

// atobDecode mirrors the browser atob: base64 text in, a "binary string" out.
// Go has no equivalent browser API bundled in the example corpus, so this is
// a direct use of the standard library's base64 codec — recorded in
// DESIGN.md as a justified stdlib exception (no third-party base64 codec
// appears anywhere in the reference corpus).
func atobDecode(s string) (string, error) {
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// btoaEncode mirrors the browser btoa.
func btoaEncode(s string) string {
	return base64.StdEncoding.EncodeToString([]byte(s))
}
