package common

// WipeByteArray overwrites the contents of b with zeros. It is used to drop
// plaintext passwords read from a terminal once they have been hashed.
func WipeByteArray(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
