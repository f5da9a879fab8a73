package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"ecglatent/internal/config"
	"ecglatent/internal/service"
	"ecglatent/models"
	"ecglatent/prototypes"
)

// firstLastEncoder: z = [первый, последний отсчёт]
type firstLastEncoder struct{}

func (firstLastEncoder) Predict(seq []float32) ([]float32, error) {
	return []float32{seq[0], seq[len(seq)-1]}, nil
}

func (e firstLastEncoder) EncodeBatch(batch [][]float32) ([][]float32, error) {
	out := make([][]float32, len(batch))
	for i, seq := range batch {
		out[i], _ = e.Predict(seq)
	}
	return out, nil
}

// echoDecoder возвращает z без изменений
type echoDecoder struct{}

func (echoDecoder) Predict(z []float32) ([]float32, error) { return z, nil }
func (echoDecoder) GenerateRandom() ([]float32, error)     { return []float32{0.1, 0.2}, nil }

func newTestServer(t *testing.T) *Server {
	t.Helper()
	dir := t.TempDir()

	store, err := prototypes.NewStore(dir)
	require.NoError(t, err)
	modelMgr, err := models.NewManager(filepath.Join(dir, "models"))
	require.NoError(t, err)

	cfg := config.Default()
	cfg.DataDir = dir
	latent := service.NewLatentService(firstLastEncoder{}, echoDecoder{}, store)
	return NewServer(cfg, latent, modelMgr)
}

func TestProcessMessage(t *testing.T) {
	s := newTestServer(t)

	reply := s.processMessage(Message{Type: TypeEncode, RequestID: "r1", Waveform: []float32{1, 2, 3}})
	assert.Equal(t, TypeEncode, reply.Type)
	assert.Equal(t, "r1", reply.RequestID)
	assert.Equal(t, []float32{1, 3}, reply.Latent)

	reply = s.processMessage(Message{Type: TypeGenerate, Count: 2})
	assert.Len(t, reply.Waveforms, 2)
	assert.NotEmpty(t, reply.RequestID)

	reply = s.processMessage(Message{
		Type:      TypeOrderTemplates,
		Templates: [][][]float32{{{1}, {2}}, {{3}}, {{4}}},
		Labels:    []string{"N", "V"},
	})
	require.NotNil(t, reply.Groups)
	assert.Equal(t, []string{"N", "V"}, reply.Groups.Keys())
	assert.Equal(t, 3, reply.Groups.Count())

	reply = s.processMessage(Message{Type: TypeReconstruct, Waveform: []float32{4, 4}})
	require.Equal(t, TypeReconstruct, reply.Type, reply.Error)
	assert.Equal(t, []float32{4, 4}, reply.Latent)
	assert.Equal(t, []float32{4, 4}, reply.Waveform)
	assert.Zero(t, reply.MSE)

	reply = s.processMessage(Message{Type: "bogus"})
	assert.Equal(t, TypeError, reply.Type)
	assert.Equal(t, "bogus", reply.Data)
}

func TestProcessMessagePrototypes(t *testing.T) {
	s := newTestServer(t)

	reply := s.processMessage(Message{
		Type:      TypeBuildPrototypes,
		Templates: [][][]float32{{{1, 0, 1}}, {{-1, 0, -1}}},
		Labels:    []string{"N", "V"},
		Source:    "test",
	})
	require.Equal(t, TypeBuildPrototypes, reply.Type, reply.Error)
	assert.Len(t, reply.Prototypes, 2)

	reply = s.processMessage(Message{Type: TypeClassify, Waveform: []float32{2, 5, 2}})
	require.NotNil(t, reply.Match)
	assert.Equal(t, "N", reply.Match.Prototype.Label)

	all := s.processMessage(Message{Type: TypeGetPrototypes})
	require.Len(t, all.Prototypes, 2)

	reply = s.processMessage(Message{Type: TypeDeletePrototype, Data: all.Prototypes[0].ID})
	assert.Equal(t, TypeDeletePrototype, reply.Type)
	assert.Equal(t, 1, s.Latent.Store().Count())
}

func TestProcessMessageModels(t *testing.T) {
	s := newTestServer(t)

	reply := s.processMessage(Message{Type: TypeGetModels})
	assert.Len(t, reply.Models, 2)

	// URL не задан
	reply = s.processMessage(Message{Type: TypeDownloadModel, ModelID: "encoder"})
	assert.Equal(t, TypeError, reply.Type)
}

func TestWebSocketRoundTrip(t *testing.T) {
	s := newTestServer(t)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(Message{Type: TypeDecode, RequestID: "d1", Latent: []float32{0.5, 0.25}}))

	var reply Message
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, conn.ReadJSON(&reply))
	assert.Equal(t, "d1", reply.RequestID)
	assert.Equal(t, []float32{0.5, 0.25}, reply.Waveform)
}

func TestModelsHTTP(t *testing.T) {
	s := newTestServer(t)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/models")
	require.NoError(t, err)
	defer resp.Body.Close()

	var states []models.ModelState
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&states))
	assert.Len(t, states, 2)
}

func TestControlStream(t *testing.T) {
	s := newTestServer(t)

	lis, err := listenGRPC("127.0.0.1:0")
	require.NoError(t, err)
	server := s.newGRPCServer()
	go server.Serve(lis)
	defer server.Stop()

	conn, err := grpc.NewClient(
		lis.Addr().String(),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.ForceCodec(jsonCodec{})),
	)
	require.NoError(t, err)
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	stream, err := conn.NewStream(ctx, &_Control_serviceDesc.Streams[0], "/ecglatent.Control/Stream")
	require.NoError(t, err)

	require.NoError(t, stream.SendMsg(&Message{Type: TypeEncode, RequestID: "g1", Waveform: []float32{4, 5, 6}}))

	var reply Message
	require.NoError(t, stream.RecvMsg(&reply))
	assert.Equal(t, "g1", reply.RequestID)
	assert.Equal(t, []float32{4, 6}, reply.Latent)

	require.NoError(t, stream.CloseSend())
}

func TestListenGRPCUnixSocket(t *testing.T) {
	path := filepath.Join(t.TempDir(), "g.sock")
	lis, err := listenGRPC("unix://" + path)
	require.NoError(t, err)
	defer lis.Close()
	assert.Equal(t, path, lis.Addr().String())
}

func TestListenGRPCPipeOnUnix(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("named pipes available")
	}
	_, err := listenGRPC(`npipe:\\.\pipe\ecglatent-test`)
	assert.ErrorIs(t, err, errPipeUnsupported)
}
