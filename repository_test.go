package secretfs

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/absfs/absfs"
	"github.com/absfs/secretfs/internal/osfs"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(password string) *Config {
	return &Config{
		KeyProvider: NewPasswordKeyProvider([]byte(password), PBKDF2Params{Iterations: testIterations}),
	}
}

func newTestRepository(t *testing.T) *Repository {
	t.Helper()
	repo, err := Open(newMemFS(t), "/", testConfig("test-password"))
	require.NoError(t, err)
	return repo
}

func newHostFS(t *testing.T) (*osfs.FileSystem, string) {
	t.Helper()
	dir := t.TempDir()
	fs, err := osfs.New(dir)
	require.NoError(t, err)
	return fs, dir
}

// backends runs f against every filesystem implementation the tests know
func backends(t *testing.T, f func(t *testing.T, base absfs.FileSystem)) {
	t.Run("memfs", func(t *testing.T) {
		f(t, newMemFS(t))
	})
	t.Run("osfs", func(t *testing.T) {
		base, _ := newHostFS(t)
		f(t, base)
	})
}

func mustLocation(t *testing.T, repo *Repository, text string) Location {
	t.Helper()
	loc, err := repo.ParseLocation(text)
	require.NoError(t, err)
	return loc
}

func TestOpen_Validation(t *testing.T) {
	base := newMemFS(t)

	_, err := Open(nil, "/", testConfig("pw"))
	assert.Error(t, err)

	_, err = Open(base, "", testConfig("pw"))
	assert.True(t, IsValidationError(err))

	_, err = Open(base, "/", nil)
	assert.ErrorIs(t, err, ErrNilConfig)

	_, err = Open(base, "/", &Config{})
	assert.ErrorIs(t, err, ErrNilKeyProvider)
}

func TestOpen_CreatesRootAndBootstrap(t *testing.T) {
	base := newMemFS(t)

	repo, err := Open(base, "/store/vault", testConfig("pw"))
	require.NoError(t, err)
	assert.Equal(t, "/store/vault", repo.RootPath())

	info, err := base.Stat("/store/vault/pwd.json")
	require.NoError(t, err)
	assert.False(t, info.IsDir())
}

func TestNew_UsesGivenCipher(t *testing.T) {
	base := newMemFS(t)
	c := testCipher(t)

	repo, err := New(base, "/", c, nil)
	require.NoError(t, err)
	assert.Same(t, c, repo.Cipher())

	_, err = base.Stat("/pwd.json")
	assert.Error(t, err, "New must not write a bootstrap file")

	_, err = New(base, "/", nil, nil)
	assert.Error(t, err)

	_, err = New(base, "/", c, &Config{FileMode: os.ModeDir})
	assert.True(t, IsValidationError(err))
}

func TestRepository_WriteRead(t *testing.T) {
	backends(t, func(t *testing.T, base absfs.FileSystem) {
		repo, err := Open(base, "/", testConfig("pw"))
		require.NoError(t, err)

		tests := []struct {
			path string
			text string
		}{
			{"top", "value"},
			{"email/work", "hunter2"},
			{"a/b/c/d", "deep"},
			{"empty", ""},
			{"unicode/ключ", "значение ✓"},
			{"big", strings.Repeat("x", 3*streamChunkSize+5)},
		}

		for _, tt := range tests {
			loc := mustLocation(t, repo, tt.path)
			require.NoError(t, repo.Write(loc, tt.text), tt.path)
			assert.True(t, repo.FileExists(loc), tt.path)
			assert.False(t, repo.FolderExists(loc), tt.path)

			got, err := repo.Read(loc)
			require.NoError(t, err, tt.path)
			assert.Equal(t, tt.text, got, tt.path)
		}

		assert.True(t, repo.FolderExists(mustLocation(t, repo, "a/b/c")))
		assert.True(t, repo.FolderExists(repo.Root()))
	})
}

func TestRepository_Overwrite(t *testing.T) {
	repo := newTestRepository(t)
	loc := mustLocation(t, repo, "site/password")

	require.NoError(t, repo.Write(loc, strings.Repeat("long value ", 10)))
	require.NoError(t, repo.Write(loc, "short"))

	got, err := repo.Read(loc)
	require.NoError(t, err)
	assert.Equal(t, "short", got)
}

func TestRepository_PhysicalLayout(t *testing.T) {
	base, dir := newHostFS(t)
	repo, err := Open(base, "/", testConfig("pw"))
	require.NoError(t, err)

	loc := mustLocation(t, repo, "web/github.com")
	require.NoError(t, repo.Write(loc, "token"))

	physical, err := repo.FilesystemPath(loc)
	require.NoError(t, err)

	segments := strings.Split(strings.TrimPrefix(physical, "/"), "/")
	require.Len(t, segments, 2)
	for i, plain := range []string{"web", "github.com"} {
		assert.Equal(t, Base64URLEncoder{}.Encode(repo.Cipher().EncryptString(plain)), segments[i])
		assert.NotContains(t, segments[i], plain)
	}

	raw, err := os.ReadFile(filepath.Join(dir, segments[0], segments[1]))
	require.NoError(t, err)
	assert.Equal(t, repo.Cipher().EncryptString("token"), raw)

	rootPath, err := repo.FilesystemPath(repo.Root())
	require.NoError(t, err)
	assert.Equal(t, "/", rootPath)
}

func TestRepository_SameDirectorySamePaths(t *testing.T) {
	base := newMemFS(t)

	first, err := Open(base, "/", testConfig("shared"))
	require.NoError(t, err)
	second, err := Open(base, "/", testConfig("shared"))
	require.NoError(t, err)

	for _, p := range []string{"a", "a/b", "x/y/z", ".dot"} {
		p1, err := first.FilesystemPath(mustLocation(t, first, p))
		require.NoError(t, err)
		p2, err := second.FilesystemPath(mustLocation(t, second, p))
		require.NoError(t, err)
		assert.Equal(t, p1, p2, p)
	}

	require.NoError(t, first.Write(mustLocation(t, first, "x/y/z"), "from first"))
	got, err := second.Read(mustLocation(t, second, "x/y/z"))
	require.NoError(t, err)
	assert.Equal(t, "from first", got)
}

func TestRepository_DistinctNamesDistinctPaths(t *testing.T) {
	repo := newTestRepository(t)
	seen := make(map[string]string)
	for _, p := range []string{"a", "b", "a/b", "b/a", "ab", "a/a"} {
		physical, err := repo.FilesystemPath(mustLocation(t, repo, p))
		require.NoError(t, err)
		if prev, ok := seen[physical]; ok {
			t.Fatalf("%s and %s map to %s", prev, p, physical)
		}
		seen[physical] = p
	}
}

func TestRepository_Delete(t *testing.T) {
	repo := newTestRepository(t)
	loc := mustLocation(t, repo, "folder/entry")
	require.NoError(t, repo.Write(loc, "bye"))

	require.NoError(t, repo.Delete(loc))
	assert.False(t, repo.FileExists(loc))
	assert.True(t, repo.FolderExists(mustLocation(t, repo, "folder")))

	err := repo.Delete(loc)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.True(t, IsNotFound(err))
	assert.True(t, IsIOError(err))
}

func TestRepository_NotAFile(t *testing.T) {
	repo := newTestRepository(t)
	folder := mustLocation(t, repo, "folder")
	require.NoError(t, repo.CreateFolder(folder))
	assert.True(t, repo.FolderExists(folder))

	_, err := repo.Read(folder)
	assert.ErrorIs(t, err, ErrNotAFile)

	assert.ErrorIs(t, repo.Delete(folder), ErrNotAFile)
	assert.ErrorIs(t, repo.Delete(repo.Root()), ErrNotAFile)
	assert.ErrorIs(t, repo.Write(repo.Root(), "x"), ErrNotAFile)
	assert.True(t, repo.FolderExists(folder))
}

func TestRepository_ReadMissing(t *testing.T) {
	backends(t, func(t *testing.T, base absfs.FileSystem) {
		repo, err := Open(base, "/", testConfig("pw"))
		require.NoError(t, err)
		require.NoError(t, repo.Write(mustLocation(t, repo, "file"), "value"))

		tests := []struct {
			name string
			path string
		}{
			{"missing file", "nope"},
			{"missing folder", "no/such/folder"},
			{"below a file", "file/child"},
			{"deep below a file", "file/child/grandchild"},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				loc := mustLocation(t, repo, tt.path)

				_, err := repo.Read(loc)
				assert.ErrorIs(t, err, ErrNotFound)
				assert.True(t, IsNotFound(err))

				err = repo.Delete(loc)
				assert.ErrorIs(t, err, ErrNotFound)

				assert.False(t, repo.FileExists(loc))
			})
		}

		text, err := repo.Read(mustLocation(t, repo, "file"))
		require.NoError(t, err)
		assert.Equal(t, "value", text)
	})
}

func TestRepository_NameLength(t *testing.T) {
	backends(t, func(t *testing.T, base absfs.FileSystem) {
		repo, err := Open(base, "/", testConfig("pw"))
		require.NoError(t, err)

		longest := strings.Repeat("n", MaxNameLength)
		loc := mustLocation(t, repo, "folder/"+longest)
		require.NoError(t, repo.Write(loc, "value"))
		text, err := repo.Read(loc)
		require.NoError(t, err)
		assert.Equal(t, "value", text)

		physical, err := repo.FilesystemPath(loc)
		require.NoError(t, err)
		segments := strings.Split(physical, string(base.Separator()))
		assert.LessOrEqual(t, len(segments[len(segments)-1]), 255)

		_, err = repo.ParseLocation("folder/" + longest + "n")
		assert.ErrorIs(t, err, ErrInvalidName)
		assert.True(t, IsValidationError(err))
	})
}

func TestRepository_ReadCorrupt(t *testing.T) {
	base := newMemFS(t)
	repo, err := Open(base, "/", testConfig("pw"))
	require.NoError(t, err)
	loc := mustLocation(t, repo, "entry")
	physical, err := repo.FilesystemPath(loc)
	require.NoError(t, err)

	writeRaw(t, base, physical, []byte("not a ciphertext"[:15]))
	_, err = repo.Read(loc)
	assert.ErrorIs(t, err, ErrDecryption)
	var ee *EncryptionError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, "/entry", ee.Path)

	writeRaw(t, base, physical, repo.Cipher().EncryptBytes([]byte{0xc3, 0x28}))
	_, err = repo.Read(loc)
	assert.ErrorIs(t, err, ErrEncoding)
}

func TestRepository_WrongPassword(t *testing.T) {
	base := newMemFS(t)
	right, err := Open(base, "/", testConfig("right"))
	require.NoError(t, err)
	require.NoError(t, right.Write(mustLocation(t, right, "secret"), "value"))

	wrong, err := Open(base, "/", testConfig("wrong"))
	require.NoError(t, err)

	_, err = wrong.Read(mustLocation(t, wrong, "secret"))
	assert.ErrorIs(t, err, ErrNotFound, "a different key maps to a different physical name")

	locations, err := wrong.ListAll(wrong.Root(), ListOptions{Recursively: true, IncludeFolders: true})
	require.NoError(t, err)
	assert.Empty(t, locations)
}

func TestRepository_Move(t *testing.T) {
	repo := newTestRepository(t)
	from := mustLocation(t, repo, "a")
	require.NoError(t, repo.Write(from, "x"))

	err := repo.Move(from, mustLocation(t, repo, "b"))
	assert.ErrorIs(t, err, ErrUnsupported)
	var ue *UnsupportedError
	require.ErrorAs(t, err, &ue)
	assert.Equal(t, "move", ue.Operation)

	assert.True(t, repo.FileExists(from))
}

func TestRepository_ForeignLocation(t *testing.T) {
	a := newTestRepository(t)
	b := newTestRepository(t)
	loc := mustLocation(t, b, "x")

	_, err := a.FilesystemPath(loc)
	assert.ErrorIs(t, err, ErrForeignLocation)
	assert.ErrorIs(t, a.Write(loc, "v"), ErrForeignLocation)
	_, err = a.Read(loc)
	assert.ErrorIs(t, err, ErrForeignLocation)
	assert.ErrorIs(t, a.Delete(loc), ErrForeignLocation)
	assert.ErrorIs(t, a.CreateFolder(loc), ErrForeignLocation)
	assert.False(t, a.FileExists(loc))

	_, err = a.ListAll(loc, ListOptions{})
	assert.ErrorIs(t, err, ErrForeignLocation)

	// mixing names from two repositories is also foreign
	n, _ := b.TryParseName("y")
	mixed := a.Root().Down(n)
	_, err = a.FilesystemPath(mixed)
	assert.ErrorIs(t, err, ErrForeignLocation)
}

func TestRepository_WriteCancelled(t *testing.T) {
	repo := newTestRepository(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := repo.WriteContext(ctx, mustLocation(t, repo, "x"), "value")
	assert.ErrorIs(t, err, context.Canceled)

	_, err = repo.ReadContext(ctx, mustLocation(t, repo, "x"))
	assert.Error(t, err)
}

func TestRepository_Logging(t *testing.T) {
	var buf bytes.Buffer
	log := zerolog.New(&buf).Level(zerolog.DebugLevel)

	cfg := testConfig("pw")
	cfg.Logger = &log
	repo, err := Open(newMemFS(t), "/", cfg)
	require.NoError(t, err)

	loc := mustLocation(t, repo, "logged")
	require.NoError(t, repo.Write(loc, "value"))
	assert.Contains(t, buf.String(), `"op":"write"`)
	assert.Contains(t, buf.String(), `"location":"/logged"`)
	assert.Contains(t, buf.String(), `"trace_id"`)
	assert.NotContains(t, buf.String(), "value\"")

	// a logger carried by the context replaces the trace id
	buf.Reset()
	var ctxBuf bytes.Buffer
	ctx := zerolog.New(&ctxBuf).With().Str("request", "r1").Logger().WithContext(context.Background())
	_, err = repo.ReadContext(ctx, loc)
	require.NoError(t, err)
	assert.Contains(t, ctxBuf.String(), `"request":"r1"`)
	assert.Contains(t, ctxBuf.String(), `"op":"read"`)
	assert.NotContains(t, ctxBuf.String(), "trace_id")

	// failed reads and writes both log at error level
	buf.Reset()
	physical, err := repo.FilesystemPath(loc)
	require.NoError(t, err)
	writeRaw(t, repo.base, physical, []byte("short"))
	_, err = repo.Read(loc)
	require.ErrorIs(t, err, ErrDecryption)
	assert.Contains(t, buf.String(), `"level":"error"`)
	assert.Contains(t, buf.String(), `"message":"read failed"`)

	buf.Reset()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = repo.WriteContext(ctx, loc, "value")
	require.ErrorIs(t, err, context.Canceled)
	assert.Contains(t, buf.String(), `"level":"error"`)
	assert.Contains(t, buf.String(), `"message":"write failed"`)
}

// memfs takes no locks, so concurrent use is exercised on the host filesystem
func TestRepository_Concurrent(t *testing.T) {
	base, _ := newHostFS(t)
	repo, err := Open(base, "/", testConfig("pw"))
	require.NoError(t, err)

	const workers = 16
	var (
		wg          sync.WaitGroup
		errs        = make([]error, workers)
		ciphertexts = make([][]byte, workers)
	)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()

			ciphertexts[i] = repo.Cipher().EncryptString("shared name")

			loc, err := repo.ParseLocation(fmt.Sprintf("worker-%d/entry", i))
			if err != nil {
				errs[i] = err
				return
			}
			want := fmt.Sprintf("secret %d", i)
			for round := 0; round < 5; round++ {
				if err := repo.Write(loc, want); err != nil {
					errs[i] = err
					return
				}
				got, err := repo.Read(loc)
				if err != nil {
					errs[i] = err
					return
				}
				if got != want {
					errs[i] = fmt.Errorf("worker %d read %q, want %q", i, got, want)
					return
				}
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < workers; i++ {
		assert.NoError(t, errs[i], "worker %d", i)
		assert.Equal(t, ciphertexts[0], ciphertexts[i], "worker %d", i)
	}

	locations, err := repo.ListAll(repo.Root(), ListOptions{Recursively: true})
	require.NoError(t, err)
	assert.Len(t, locations, workers)
}
