// Package secretfs stores text secrets in an ordinary directory tree where
// every file name and every file body is encrypted.
//
// # Overview
//
// A Repository sits on top of any absfs.FileSystem. Callers address entries
// with plaintext Locations such as /web/github.com; the repository maps each
// name to base64url(AES-256-CBC(name)) and stores the body as the raw
// AES-256-CBC ciphertext of the UTF-8 text. Because the mapping is
// deterministic there is no index: the physical path of a location is
// recomputed on every call and listing decrypts names as it walks the tree.
//
// # Basic Usage
//
//	base, _ := memfs.NewFS()
//
//	repo, err := secretfs.Open(base, "/vault", &secretfs.Config{
//	    KeyProvider: secretfs.NewPasswordKeyProvider(
//	        []byte("my-password"),
//	        secretfs.PBKDF2Params{}, // 600,000 iterations
//	    ),
//	})
//	if err != nil {
//	    panic(err)
//	}
//
//	loc, _ := repo.ParseLocation("web/github.com")
//	_ = repo.Write(loc, "hunter2")
//	text, _ := repo.Read(loc)
//
//	for l, err := range repo.List(repo.Root(), secretfs.ListOptions{Recursively: true}) {
//	    if err != nil {
//	        break
//	    }
//	    fmt.Println(l)
//	}
//
// # On-disk Format
//
// The repository root holds a bootstrap file named pwd.json:
//
//	{"Cipher":{"InitialisationData":"<standard base64 of salt ‖ iv>"}}
//
// salt is 8 bytes and iv is 16 bytes. Both are generated once, when Open finds
// no bootstrap file, and never change afterwards. The AES key is
// PBKDF2-HMAC-SHA256(password, salt, 600000 iterations, 32 bytes).
//
// Every other entry is a folder or file whose name is the padded base64url
// encoding of AES-256-CBC(name) with PKCS7 padding and the fixed iv. File
// contents use the same cipher with no header, salt or nonce. Anything that
// does not decode and decrypt to a valid name is ignored by List.
//
// # Security Considerations
//
// The fixed iv makes encryption deterministic. This is what lets a location be
// found without an index, and it has costs:
//   - Equal names encrypt to equal file names, in every folder.
//   - Equal bodies encrypt to equal file contents, and bodies that share a
//     16-byte aligned prefix share a ciphertext prefix.
//   - CBC provides no integrity. A modified file decrypts to altered text or
//     fails with ErrDecryption; it is never detected as tampering.
//   - File sizes and the shape of the tree are visible.
//
// Changing any of this requires a new on-disk format and a migration of
// existing repositories.
//
// # Thread Safety
//
// Cipher and Repository hold no mutable state after construction and can be
// shared between goroutines. The repository takes no locks, so concurrent use
// is only as safe as the underlying filesystem: the host filesystem is, memfs
// is not. Concurrent writes to one location race and the last one wins.
package secretfs
