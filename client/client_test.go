package client_test

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/biogit/biogit/auth"
	"github.com/biogit/biogit/client"
	"github.com/biogit/biogit/merge"
	"github.com/biogit/biogit/object"
	"github.com/biogit/biogit/repo"
	"github.com/biogit/biogit/server"
	"github.com/stretchr/testify/require"
)

func startServer(t *testing.T, reposRoot string) string {
	t.Helper()
	registry := auth.NewRegistry()
	srv := server.New(server.Config{ReposRoot: reposRoot, TokenSecret: []byte("test-secret")}, registry)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go srv.ServeListener(ctx, ln)

	return ln.Addr().String()
}

func registerUser(t *testing.T, addr, username, password string) {
	t.Helper()
	conn, err := client.DialTimeout(addr, 2*time.Second)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.Register(username, password))
}

func sig(name string) object.Signature {
	return object.Signature{Name: name, Email: name + "@example.com", When: time.Unix(1700000000, 0).UTC()}
}

func writeFile(t *testing.T, root, path, content string) {
	t.Helper()
	full := filepath.Join(root, path)
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
}

func TestPushFetchCloneAndPullRoundTrip(t *testing.T) {
	root := t.TempDir()
	serverRoot := filepath.Join(root, "server")
	require.NoError(t, os.MkdirAll(serverRoot, 0o755))

	_, err := repo.Init(filepath.Join(serverRoot, "demo"))
	require.NoError(t, err)

	addr := startServer(t, serverRoot)
	remoteURL := fmt.Sprintf("biogit://%s/demo", addr)
	registerUser(t, addr, "dave", "s3cret")

	// --- push ---
	clientRoot := filepath.Join(root, "client")
	r, err := repo.Init(clientRoot)
	require.NoError(t, err)
	require.NoError(t, r.AddRemote("origin", remoteURL))

	writeFile(t, clientRoot, "hello.txt", "hi\n")
	require.NoError(t, r.Add([]string{"hello.txt"}))
	localHash, err := r.Commit(sig("dave"), "initial commit")
	require.NoError(t, err)

	require.NoError(t, client.Push(r, "origin", "dave", "s3cret", "refs/heads/main", "refs/heads/main", false, 2))

	serverRepo, err := repo.Open(filepath.Join(serverRoot, "demo"))
	require.NoError(t, err)
	serverHash, err := serverRepo.Refs.ReadRef("refs/heads/main")
	require.NoError(t, err)
	require.Equal(t, localHash, serverHash)

	// --- fetch into a second, separately-initialized repo ---
	fetchRoot := filepath.Join(root, "fetcher")
	r2, err := repo.Init(fetchRoot)
	require.NoError(t, err)
	require.NoError(t, r2.AddRemote("origin", remoteURL))
	require.NoError(t, client.Fetch(r2, "origin", "dave", "s3cret", "", 2))

	trackedHash, err := r2.Refs.ReadRef("refs/remotes/origin/main")
	require.NoError(t, err)
	require.Equal(t, localHash, trackedHash)
	require.True(t, r2.Objects.Exists(localHash))

	// --- clone ---
	cloneRoot := filepath.Join(root, "cloned")
	r3, err := client.Clone(remoteURL, cloneRoot, "dave", "s3cret", 2)
	require.NoError(t, err)

	headHash, err := r3.Refs.ReadRef("refs/heads/main")
	require.NoError(t, err)
	require.Equal(t, localHash, headHash)

	content, err := os.ReadFile(filepath.Join(cloneRoot, "hello.txt"))
	require.NoError(t, err)
	require.Equal(t, "hi\n", string(content))

	// --- pull a fast-forward update made straight against the server repo ---
	writeFile(t, filepath.Join(serverRoot, "demo"), "second.txt", "more\n")
	require.NoError(t, serverRepo.Add([]string{"second.txt"}))
	_, err = serverRepo.Commit(sig("dave"), "second commit")
	require.NoError(t, err)

	result, err := client.Pull(r3, "origin", "main", "dave", "s3cret", 2)
	require.NoError(t, err)
	require.Equal(t, merge.FastForward, result)

	content, err = os.ReadFile(filepath.Join(cloneRoot, "second.txt"))
	require.NoError(t, err)
	require.Equal(t, "more\n", string(content))
}

func TestPushRejectsNonFastForward(t *testing.T) {
	root := t.TempDir()
	serverRoot := filepath.Join(root, "server")
	require.NoError(t, os.MkdirAll(serverRoot, 0o755))
	_, err := repo.Init(filepath.Join(serverRoot, "demo"))
	require.NoError(t, err)

	addr := startServer(t, serverRoot)
	remoteURL := fmt.Sprintf("biogit://%s/demo", addr)
	registerUser(t, addr, "eve", "pw")

	clientRoot := filepath.Join(root, "client")
	r, err := repo.Init(clientRoot)
	require.NoError(t, err)
	require.NoError(t, r.AddRemote("origin", remoteURL))
	writeFile(t, clientRoot, "a.txt", "one\n")
	require.NoError(t, r.Add([]string{"a.txt"}))
	_, err = r.Commit(sig("eve"), "c1")
	require.NoError(t, err)
	require.NoError(t, client.Push(r, "origin", "eve", "pw", "refs/heads/main", "refs/heads/main", false, 2))

	// Another client pushes first, moving the remote ahead.
	otherRoot := filepath.Join(root, "other")
	other, err := repo.Init(otherRoot)
	require.NoError(t, err)
	require.NoError(t, other.AddRemote("origin", remoteURL))
	require.NoError(t, client.Fetch(other, "origin", "eve", "pw", "", 2))
	tracked, err := other.Refs.ReadRef("refs/remotes/origin/main")
	require.NoError(t, err)
	require.NoError(t, other.Refs.CompareAndSwap("refs/heads/main", tracked, nil))
	require.NoError(t, other.Switch("main"))
	writeFile(t, otherRoot, "b.txt", "two\n")
	require.NoError(t, other.Add([]string{"b.txt"}))
	_, err = other.Commit(sig("eve"), "c2")
	require.NoError(t, err)
	require.NoError(t, client.Push(other, "origin", "eve", "pw", "refs/heads/main", "refs/heads/main", false, 2))

	// The first client's stale local main can no longer fast-forward the remote.
	writeFile(t, clientRoot, "c.txt", "three\n")
	require.NoError(t, r.Add([]string{"c.txt"}))
	_, err = r.Commit(sig("eve"), "diverging commit")
	require.NoError(t, err)
	err = client.Push(r, "origin", "eve", "pw", "refs/heads/main", "refs/heads/main", false, 2)
	require.Error(t, err)
}
