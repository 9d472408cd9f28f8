package kafka

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"formattransformer/internal/jobspec"
)

type fakeSession struct {
	ctx context.Context

	mu     sync.Mutex
	marked []int64
}

func (s *fakeSession) Claims() map[string][]int32               { return nil }
func (s *fakeSession) MemberID() string                         { return "m" }
func (s *fakeSession) GenerationID() int32                      { return 1 }
func (s *fakeSession) MarkOffset(string, int32, int64, string)  {}
func (s *fakeSession) Commit()                                  {}
func (s *fakeSession) ResetOffset(string, int32, int64, string) {}
func (s *fakeSession) Context() context.Context                 { return s.ctx }
func (s *fakeSession) MarkMessage(msg *sarama.ConsumerMessage, _ string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.marked = append(s.marked, msg.Offset)
}

type fakeClaim struct{ ch chan *sarama.ConsumerMessage }

func (c fakeClaim) Topic() string                            { return "requests" }
func (c fakeClaim) Partition() int32                         { return 0 }
func (c fakeClaim) InitialOffset() int64                     { return 0 }
func (c fakeClaim) HighWaterMarkOffset() int64               { return int64(len(c.ch)) }
func (c fakeClaim) Messages() <-chan *sarama.ConsumerMessage { return c.ch }

const goodJSON = `{"bundle_file":"names","source":{"format":"cif","path":"in.cif"},"target":{"format":"nexus","path":"out.nx","options":{"codec":"xml"}}}`

func claimOf(values ...string) fakeClaim {
	ch := make(chan *sarama.ConsumerMessage, len(values))
	for i, v := range values {
		ch <- &sarama.ConsumerMessage{Topic: "requests", Offset: int64(i), Value: []byte(v)}
	}
	close(ch)
	return fakeClaim{ch: ch}
}

func TestConsumeClaim_HandlesAndMarks(t *testing.T) {
	var got []jobspec.Request
	h := &groupHandler{handle: func(_ context.Context, req jobspec.Request) error {
		got = append(got, req)
		if len(got) == 2 {
			return errors.New("transform failed")
		}
		return nil
	}}
	sess := &fakeSession{ctx: context.Background()}

	err := h.ConsumeClaim(sess, claimOf(goodJSON, "not json", goodJSON, `{"bundle_file":"x"}`, goodJSON))
	require.NoError(t, err)

	require.Len(t, got, 3)
	assert.Equal(t, "cif", got[0].Source.Format)
	assert.Equal(t, map[string]string{"codec": "xml"}, got[0].Target.Options)
	assert.Equal(t, []int64{0, 1, 2, 3, 4}, sess.marked, "poison and failed requests are committed too")
}

func TestConsumeClaim_CancelledLeavesMessageUnmarked(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	h := &groupHandler{handle: func(ctx context.Context, _ jobspec.Request) error {
		cancel()
		return ctx.Err()
	}}
	sess := &fakeSession{ctx: ctx}

	require.NoError(t, h.ConsumeClaim(sess, claimOf(goodJSON, goodJSON)))
	assert.Empty(t, sess.marked)
}

func TestDecodeRequest(t *testing.T) {
	req, err := decodeRequest([]byte(goodJSON))
	require.NoError(t, err)
	assert.Equal(t, jobspec.Endpoint{Format: "nexus", Path: "out.nx", Options: map[string]string{"codec": "xml"}}, req.Target)

	_, err = decodeRequest([]byte(`{"bundle_file":"n","colour":"blue"}`))
	assert.Error(t, err)

	_, err = decodeRequest([]byte(`{"bundle_file":"n"}`))
	assert.ErrorIs(t, err, jobspec.ErrInvalidRequest)
}

func TestSaramaConfig(t *testing.T) {
	sc, err := saramaConfig(Config{StartFrom: "oldest", Version: "3.6.0", CommitInt: time.Second, SASLUser: "u", SASLPass: "p"})
	require.NoError(t, err)
	assert.Equal(t, sarama.OffsetOldest, sc.Consumer.Offsets.Initial)
	assert.Equal(t, time.Second, sc.Consumer.Offsets.AutoCommit.Interval)
	assert.True(t, sc.Net.SASL.Enable)
	assert.Equal(t, sarama.V3_6_0_0, sc.Version)

	_, err = saramaConfig(Config{Version: "banana", CommitInt: time.Second})
	assert.Error(t, err)
}

func TestNewAdapter(t *testing.T) {
	a, err := NewAdapter("sarama")
	require.NoError(t, err)
	assert.IsType(t, &SaramaDriver{}, a)
	assert.NoError(t, a.Close(), "closing an unconfigured driver")

	_, err = NewAdapter("kgo")
	assert.Error(t, err)
}
