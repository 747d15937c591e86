package server_test

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/biogit/biogit/auth"
	"github.com/biogit/biogit/hash"
	"github.com/biogit/biogit/object"
	"github.com/biogit/biogit/repo"
	"github.com/biogit/biogit/server"
	"github.com/biogit/biogit/wire"
	"github.com/stretchr/testify/require"
)

func startTestServer(t *testing.T, reposRoot string) (addr string, registry *auth.Registry) {
	t.Helper()
	registry = auth.NewRegistry()
	srv := server.New(server.Config{ReposRoot: reposRoot, TokenSecret: []byte("test-secret")}, registry)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go srv.ServeListener(ctx, ln)

	return ln.Addr().String(), registry
}

func dial(t *testing.T, addr string) net.Conn {
	t.Helper()
	conn, err := net.DialTimeout("tcp", addr, 2*time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func loginAndGetToken(t *testing.T, conn net.Conn, username, password string, register bool) string {
	t.Helper()
	if register {
		require.NoError(t, wire.WriteFrame(conn, wire.MsgRegisterUser, wire.EncodeCredentials(wire.Credentials{Username: username, Password: password})))
		f, err := wire.ReadFrame(conn)
		require.NoError(t, err)
		require.Equal(t, wire.MsgRegisterOK, f.MsgID)
	}

	require.NoError(t, wire.WriteFrame(conn, wire.MsgLoginUser, wire.EncodeCredentials(wire.Credentials{Username: username, Password: password})))
	f, err := wire.ReadFrame(conn)
	require.NoError(t, err)
	require.Equal(t, wire.MsgLoginOK, f.MsgID)
	token, err := wire.DecodeLoginOK(f.Body)
	require.NoError(t, err)
	return token
}

func TestRegisterLoginTargetRepoFlow(t *testing.T) {
	root := t.TempDir()
	_, err := repo.Init(root + "/demo")
	require.NoError(t, err)

	addr, _ := startTestServer(t, root)
	conn := dial(t, addr)

	token := loginAndGetToken(t, conn, "ada", "s3cret", true)

	require.NoError(t, wire.WriteFrame(conn, wire.MsgTargetRepo, wire.EncodeTargetRepo(token, "demo")))
	f, err := wire.ReadFrame(conn)
	require.NoError(t, err)
	require.Equal(t, wire.MsgTargetRepoAck, f.MsgID)
}

func TestTargetRepoWithBadTokenIsDenied(t *testing.T) {
	root := t.TempDir()
	_, err := repo.Init(root + "/demo")
	require.NoError(t, err)

	addr, _ := startTestServer(t, root)
	conn := dial(t, addr)

	require.NoError(t, wire.WriteFrame(conn, wire.MsgTargetRepo, wire.EncodeTargetRepo("not-a-real-token", "demo")))
	f, err := wire.ReadFrame(conn)
	require.NoError(t, err)
	require.Equal(t, wire.MsgAuthRequired, f.MsgID)
}

func TestPutObjectCheckObjectsGetObjectRoundTrip(t *testing.T) {
	root := t.TempDir()
	_, err := repo.Init(root + "/demo")
	require.NoError(t, err)

	addr, _ := startTestServer(t, root)
	conn := dial(t, addr)
	token := loginAndGetToken(t, conn, "bob", "pw", true)

	require.NoError(t, wire.WriteFrame(conn, wire.MsgTargetRepo, wire.EncodeTargetRepo(token, "demo")))
	f, err := wire.ReadFrame(conn)
	require.NoError(t, err)
	require.Equal(t, wire.MsgTargetRepoAck, f.MsgID)

	raw := object.Frame(object.BlobObject, []byte("hi\n"))
	h := hash.Sum(raw)

	checkBody := wire.EncodeTokenPrefixed(token, wire.EncodeCheckObjects([]hash.Hash{h}))
	require.NoError(t, wire.WriteFrame(conn, wire.MsgCheckObjects, checkBody))
	f, err = wire.ReadFrame(conn)
	require.NoError(t, err)
	require.Equal(t, wire.MsgCheckObjectsResult, f.MsgID)
	present, err := wire.DecodeCheckObjectsResult(f.Body)
	require.NoError(t, err)
	require.Equal(t, []bool{false}, present)

	putBody := wire.EncodeTokenPrefixed(token, wire.EncodePutObject(h, raw))
	require.NoError(t, wire.WriteFrame(conn, wire.MsgPutObject, putBody))
	f, err = wire.ReadFrame(conn)
	require.NoError(t, err)
	require.Equal(t, wire.MsgAckOK, f.MsgID)

	getBody := wire.EncodeTokenPrefixed(token, wire.EncodeGetObject(h))
	require.NoError(t, wire.WriteFrame(conn, wire.MsgGetObject, getBody))
	f, err = wire.ReadFrame(conn)
	require.NoError(t, err)
	require.Equal(t, wire.MsgObjectContent, f.MsgID)
	gotHash, gotRaw, err := wire.DecodeObjectContent(f.Body)
	require.NoError(t, err)
	require.Equal(t, h, gotHash)
	require.Equal(t, raw, gotRaw)
}

func TestUpdateRefFastForwardThenNonFastForwardDenied(t *testing.T) {
	root := t.TempDir()
	r, err := repo.Init(root + "/demo")
	require.NoError(t, err)

	sig := object.Signature{Name: "t", Email: "t@example.com", When: time.Unix(1700000000, 0).UTC()}
	commit1, err := r.Objects.WriteCommit(&object.Commit{TreeHash: hash.Zero, Author: sig, Committer: sig, Message: "c1"})
	require.NoError(t, err)
	commit2, err := r.Objects.WriteCommit(&object.Commit{TreeHash: hash.Zero, ParentHashes: []hash.Hash{commit1}, Author: sig, Committer: sig, Message: "c2"})
	require.NoError(t, err)
	offBranch, err := r.Objects.WriteCommit(&object.Commit{TreeHash: hash.Zero, Author: sig, Committer: sig, Message: "unrelated"})
	require.NoError(t, err)

	addr, _ := startTestServer(t, root)
	conn := dial(t, addr)
	token := loginAndGetToken(t, conn, "carol", "pw", true)
	require.NoError(t, wire.WriteFrame(conn, wire.MsgTargetRepo, wire.EncodeTargetRepo(token, "demo")))
	f, err := wire.ReadFrame(conn)
	require.NoError(t, err)
	require.Equal(t, wire.MsgTargetRepoAck, f.MsgID)

	req := wire.UpdateRefRequest{RefName: "refs/heads/main", New: commit1}
	body := wire.EncodeTokenPrefixed(token, wire.EncodeUpdateRef(req))
	require.NoError(t, wire.WriteFrame(conn, wire.MsgUpdateRef, body))
	f, err = wire.ReadFrame(conn)
	require.NoError(t, err)
	require.Equal(t, wire.MsgRefUpdated, f.MsgID)

	req2 := wire.UpdateRefRequest{RefName: "refs/heads/main", New: commit2}
	body2 := wire.EncodeTokenPrefixed(token, wire.EncodeUpdateRef(req2))
	require.NoError(t, wire.WriteFrame(conn, wire.MsgUpdateRef, body2))
	f, err = wire.ReadFrame(conn)
	require.NoError(t, err)
	require.Equal(t, wire.MsgRefUpdated, f.MsgID)

	req3 := wire.UpdateRefRequest{RefName: "refs/heads/main", New: offBranch}
	body3 := wire.EncodeTokenPrefixed(token, wire.EncodeUpdateRef(req3))
	require.NoError(t, wire.WriteFrame(conn, wire.MsgUpdateRef, body3))
	f, err = wire.ReadFrame(conn)
	require.NoError(t, err)
	require.Equal(t, wire.MsgRefUpdateDenied, f.MsgID)
}
