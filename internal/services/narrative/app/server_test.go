package server

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	platformgrpc "github.com/louisbranch/branching.ink/internal/platform/grpc"
	"github.com/louisbranch/branching.ink/internal/platform/requestctx"
	"github.com/louisbranch/branching.ink/internal/platform/timeouts"
	narrativeservice "github.com/louisbranch/branching.ink/internal/services/narrative/api/grpc/narrative"
	"github.com/louisbranch/branching.ink/internal/services/narrative/domain/event"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/structpb"
)

const lanternGraph = `{
  "schemaVersion": 2,
  "startNodeId": "dock",
  "nodes": [
    {"id": "dock", "buttons": [{"id": "board", "targetNodeId": "deck"}]},
    {"id": "deck", "isEnding": true}
  ]
}`

func startServer(t *testing.T) (*Server, *grpc.ClientConn) {
	t.Helper()
	t.Setenv("BRANCHING_INK_NARRATIVE_DB_PATH", t.TempDir()+"/narrative.db")

	srv, err := NewWithAddr("127.0.0.1:0")
	if err != nil {
		t.Fatalf("new server: %v", err)
	}

	runCtx, runCancel := context.WithCancel(context.Background())
	serveDone := make(chan error, 1)
	go func() {
		serveDone <- srv.Serve(runCtx)
	}()
	t.Cleanup(func() {
		runCancel()
		select {
		case serveErr := <-serveDone:
			if serveErr != nil {
				t.Fatalf("serve: %v", serveErr)
			}
		case <-time.After(5 * time.Second):
			t.Fatal("timeout waiting for server shutdown")
		}
	})

	conn, err := platformgrpc.DialWithHealth(context.Background(), srv.Addr(), narrativeservice.ServiceName, timeouts.GRPCDial)
	if err != nil {
		t.Fatalf("dial narrative server: %v", err)
	}
	t.Cleanup(func() {
		if closeErr := conn.Close(); closeErr != nil {
			t.Fatalf("close gRPC connection: %v", closeErr)
		}
	})
	return srv, conn
}

func asUser(userID string) context.Context {
	return metadata.AppendToOutgoingContext(context.Background(), requestctx.UserIDHeader, userID)
}

func invoke(t *testing.T, ctx context.Context, conn *grpc.ClientConn, method string, fields map[string]any) *structpb.Struct {
	t.Helper()
	in, err := structpb.NewStruct(fields)
	if err != nil {
		t.Fatalf("new struct: %v", err)
	}
	out := new(structpb.Struct)
	if err := conn.Invoke(ctx, "/"+narrativeservice.ServiceName+"/"+method, in, out); err != nil {
		t.Fatalf("%s: %v", method, err)
	}
	return out
}

func TestServer_PublishAndReadRoundTrip(t *testing.T) {
	_, conn := startServer(t)
	author := asUser("author-1")

	created := invoke(t, author, conn, "CreateComic", map[string]any{"title": "Lantern"})
	comicID := created.GetFields()["comic"].GetStructValue().GetFields()["id"].GetStringValue()
	if comicID == "" {
		t.Fatalf("missing comic id: %v", created)
	}

	saved := invoke(t, author, conn, "SaveDraft", map[string]any{"comicId": comicID, "graphJson": lanternGraph})
	revisionID := saved.GetFields()["revision"].GetStructValue().GetFields()["id"].GetStringValue()
	invoke(t, author, conn, "SubmitRevision", map[string]any{"revisionId": revisionID})
	invoke(t, asUser("reviewer-1"), conn, "ApproveRevision", map[string]any{"revisionId": revisionID})

	reader := asUser("reader-1")
	invoke(t, reader, conn, "StartReading", map[string]any{"comicId": comicID})
	chosen := invoke(t, reader, conn, "Choose", map[string]any{"comicId": comicID, "choiceId": "board", "elapsedSeconds": 3})
	inner := chosen.GetFields()["progress"].GetStructValue().GetFields()["progress"].GetStructValue().GetFields()
	if got := inner["currentNodeId"].GetStringValue(); got != "deck" {
		t.Fatalf("current node = %q, want deck", got)
	}
	if got := inner["status"].GetStringValue(); got != "ended" {
		t.Fatalf("status = %q, want ended", got)
	}

	got := invoke(t, reader, conn, "GetProgress", map[string]any{"comicId": comicID})
	if version := got.GetFields()["progress"].GetStructValue().GetFields()["version"].GetNumberValue(); version != 2 {
		t.Fatalf("version = %v, want 2", version)
	}
}

func TestServer_SubscribeDeliversDecisions(t *testing.T) {
	srv, conn := startServer(t)
	author := asUser("author-1")

	created := invoke(t, author, conn, "CreateComic", map[string]any{"title": "Lantern"})
	comicID := created.GetFields()["comic"].GetStructValue().GetFields()["id"].GetStringValue()
	saved := invoke(t, author, conn, "SaveDraft", map[string]any{"comicId": comicID, "graphJson": lanternGraph})
	revisionID := saved.GetFields()["revision"].GetStructValue().GetFields()["id"].GetStringValue()
	invoke(t, author, conn, "SubmitRevision", map[string]any{"revisionId": revisionID})

	streamCtx, cancel := context.WithCancel(author)
	defer cancel()
	stream, err := conn.NewStream(streamCtx, &grpc.StreamDesc{StreamName: "Subscribe", ServerStreams: true}, "/"+narrativeservice.ServiceName+"/Subscribe")
	if err != nil {
		t.Fatalf("open subscribe stream: %v", err)
	}
	if err := stream.SendMsg(&structpb.Struct{}); err != nil {
		t.Fatalf("send subscribe request: %v", err)
	}
	if err := stream.CloseSend(); err != nil {
		t.Fatalf("close send: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for srv.hub.Subscribers(event.UserTopic("author-1")) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("subscription not registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	invoke(t, asUser("reviewer-1"), conn, "RejectRevision", map[string]any{"revisionId": revisionID, "reason": "needs a second ending"})

	msg := new(structpb.Struct)
	if err := stream.RecvMsg(msg); err != nil {
		t.Fatalf("receive event: %v", err)
	}
	if got := msg.GetFields()["type"].GetStringValue(); got != string(event.TypeRevisionDecided) {
		t.Fatalf("event type = %q", got)
	}
	if got := msg.GetFields()["payload"].GetStructValue().GetFields()["decision"].GetStringValue(); got != event.DecisionRejected {
		t.Fatalf("decision = %q", got)
	}
}

func TestLoadServerEnv(t *testing.T) {
	t.Setenv("BRANCHING_INK_NARRATIVE_DB_PATH", "")
	t.Setenv("BRANCHING_INK_NARRATIVE_SYNC_BUFFER", "8")

	env := loadServerEnv()
	if env.DBPath != filepath.Join("data", "narrative.db") {
		t.Fatalf("db path = %q, want default", env.DBPath)
	}
	if env.SyncBuffer != 8 {
		t.Fatalf("sync buffer = %d, want 8", env.SyncBuffer)
	}
}
