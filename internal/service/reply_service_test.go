package service_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fsm-intake/internal/gmail"
	"fsm-intake/internal/interpreter"
	"fsm-intake/internal/model"
	"fsm-intake/internal/repository/memory"
	"fsm-intake/internal/service"
)

func TestSendReply(t *testing.T) {
	repo := memory.NewInMemoryEmailRepository()
	mail := gmail.NewMockGmailClient()
	svc := service.NewReplyService(repo, interpreter.NewSessions(), mail, testLogger())
	ctx := context.Background()

	email := classified("a", model.ClassificationIncomplete, &model.ExtractedQuery{})
	email.ThreadID = "thread-1"
	seed(t, repo, email)

	receipt, err := svc.SendReply(ctx, "s1", "a")
	require.NoError(t, err)
	assert.Equal(t, "jane@example.com", receipt.Recipient)
	assert.Equal(t, interpreter.ActionClarification, receipt.Kind)
	assert.Equal(t, "mock-a", receipt.MessageID)

	require.Equal(t, 1, mail.SentCount())
	sent := mail.Sent[0]
	assert.Equal(t, "Re: Subject a", sent.Subject)
	assert.Equal(t, "thread-1", sent.ThreadID)
	assert.Equal(t, "Thanks for getting in touch", sent.Body)

	_, err = svc.SendReply(ctx, "s1", "a")
	assert.ErrorIs(t, err, interpreter.ErrReplyAlreadySent)
	assert.Equal(t, 1, mail.SentCount())

	_, err = svc.SendReply(ctx, "s2", "a")
	require.NoError(t, err)
}

func TestSendReplyRefusals(t *testing.T) {
	repo := memory.NewInMemoryEmailRepository()
	ctx := context.Background()
	no := false
	quiet := classified("quiet", model.ClassificationIncomplete, nil)
	quiet.ShouldReply = &no
	seed(t, repo,
		classified("junk", model.ClassificationJunk, nil),
		quiet,
	)

	disabled := service.NewReplyService(repo, interpreter.NewSessions(), nil, testLogger())
	_, err := disabled.SendReply(ctx, "s1", "junk")
	assert.ErrorIs(t, err, service.ErrReplyDisabled)

	svc := service.NewReplyService(repo, interpreter.NewSessions(), gmail.NewMockGmailClient(), testLogger())
	_, err = svc.SendReply(ctx, "s1", "junk")
	assert.ErrorIs(t, err, service.ErrNoReply)
	_, err = svc.SendReply(ctx, "s1", "quiet")
	assert.ErrorIs(t, err, service.ErrNoReply)
}

func TestSendReplyFailureIsRetryable(t *testing.T) {
	repo := memory.NewInMemoryEmailRepository()
	seed(t, repo, classified("a", model.ClassificationValid, &model.ExtractedQuery{}))

	mail := gmail.NewMockGmailClient()
	mail.SendReplyFunc = func(context.Context, *model.OutgoingReply) (string, error) {
		return "", errors.New("quota exceeded")
	}
	sessions := interpreter.NewSessions()
	svc := service.NewReplyService(repo, sessions, mail, testLogger())

	_, err := svc.SendReply(context.Background(), "s1", "a")
	assert.ErrorContains(t, err, "quota exceeded")

	result, err := service.NewInboxService(repo, sessions, nil, testLogger()).ReviewEmail(context.Background(), "s1", "a")
	require.NoError(t, err)
	assert.False(t, result.ReplySent)

	mail.SendReplyFunc = nil
	_, err = svc.SendReply(context.Background(), "s1", "a")
	require.NoError(t, err)
	assert.Equal(t, 1, mail.SentCount())
}

func TestSendReplyConcurrentRequestsSendOnce(t *testing.T) {
	repo := memory.NewInMemoryEmailRepository()
	seed(t, repo, classified("a", model.ClassificationIncomplete, &model.ExtractedQuery{}))

	var calls atomic.Int32
	mail := gmail.NewMockGmailClient()
	mail.SendReplyFunc = func(_ context.Context, reply *model.OutgoingReply) (string, error) {
		calls.Add(1)
		time.Sleep(20 * time.Millisecond)
		return "mock-" + reply.EmailID, nil
	}
	svc := service.NewReplyService(repo, interpreter.NewSessions(), mail, testLogger())

	var (
		wg       sync.WaitGroup
		sent     atomic.Int32
		rejected atomic.Int32
	)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.SendReply(context.Background(), "s1", "a")
			switch {
			case err == nil:
				sent.Add(1)
			case errors.Is(err, interpreter.ErrReplyAlreadySent):
				rejected.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, int32(1), sent.Load())
	assert.Equal(t, int32(4), rejected.Load())
}
