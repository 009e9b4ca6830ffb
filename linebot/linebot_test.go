package linebot

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"line-comicbot/pkg/gallery"

	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestVerifySignature(t *testing.T) {
	body := []byte(`{"destination":"U1","events":[]}`)
	good := Sign("secret", body)

	tests := []struct {
		name      string
		secret    string
		signature string
		want      error
	}{
		{name: "valid", secret: "secret", signature: good, want: nil},
		{name: "missing", secret: "secret", signature: "", want: ErrSignatureMissing},
		{name: "wrong secret", secret: "other", signature: good, want: ErrSignatureInvalid},
		{name: "not base64", secret: "secret", signature: "%%%", want: ErrSignatureInvalid},
		{name: "truncated", secret: "secret", signature: good[:10], want: ErrSignatureInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := VerifySignature(tt.secret, body, tt.signature)
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}

	assert.ErrorIs(t, VerifySignature("secret", append(body, ' '), good), ErrSignatureInvalid)
}

func TestParseEvents(t *testing.T) {
	body := `{"destination":"U0","events":[
		{"type":"follow","replyToken":"rt-follow","source":{"type":"user","userId":"U1"}},
		{"type":"message","replyToken":"rt-text","source":{"type":"user","userId":"U2"},"message":{"id":"m1","type":"text","text":"hi"}},
		{"type":"message","replyToken":"rt-img","source":{"type":"user","userId":"U3"},"message":{"id":"m2","type":"image"}},
		{"type":"message","replyToken":"rt-st","source":{"type":"user","userId":"U4"},"message":{"id":"m3","type":"sticker"}},
		{"type":"unfollow","source":{"type":"user","userId":"U5"}},
		{"type":"message","replyToken":"rt-grp","source":{"type":"group","groupId":"G1","userId":"U6"},"message":{"id":"m4","type":"text","text":"yo"}}
	]}`

	events, err := ParseEvents([]byte(body))
	require.NoError(t, err)
	require.Len(t, events, 6)

	assert.Equal(t, FollowEvent{ReplyToken: "rt-follow", UserID: "U1"}, events[0])
	assert.Equal(t, TextMessageEvent{ReplyToken: "rt-text", UserID: "U2", MessageID: "m1", Text: "hi"}, events[1])
	assert.Equal(t, ImageMessageEvent{ReplyToken: "rt-img", UserID: "U3", MessageID: "m2"}, events[2])
	assert.Equal(t, IgnoredEvent{Type: "message/sticker"}, events[3])
	assert.Equal(t, IgnoredEvent{Type: "unfollow"}, events[4])
	assert.Equal(t, TextMessageEvent{ReplyToken: "rt-grp", UserID: "U6", MessageID: "m4", Text: "yo"}, events[5])

	_, err = ParseEvents([]byte(`{not json`))
	assert.Error(t, err)

	events, err = ParseEvents([]byte(`{"destination":"U0","events":[]}`))
	require.NoError(t, err)
	assert.Empty(t, events)
}

type recorded struct {
	path string
	auth string
	body map[string]any
}

func newAPIServer(t *testing.T, status int) (*Client, *[]recorded) {
	t.Helper()
	var calls []recorded
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		calls = append(calls, recorded{path: r.URL.Path, auth: r.Header.Get("Authorization"), body: body})
		w.WriteHeader(status)
		io.WriteString(w, `{}`)
	}))
	t.Cleanup(srv.Close)
	c, err := New("token", testLogger(), WithEndpoints(srv.URL, srv.URL))
	require.NoError(t, err)
	return c, &calls
}

func TestReplyAndPush(t *testing.T) {
	c, calls := newAPIServer(t, http.StatusOK)

	require.NoError(t, c.Reply(t.Context(), "rt", EditingMessages()...))
	require.NoError(t, c.Push(t.Context(), "U1", Image("https://x/a.png"), ResultCard("https://x/a.png", "https://liff.line.me/id/abc")))

	require.Len(t, *calls, 2)
	reply := (*calls)[0]
	assert.Equal(t, "/v2/bot/message/reply", reply.path)
	assert.Equal(t, "Bearer token", reply.auth)
	assert.Equal(t, "rt", reply.body["replyToken"])
	msgs := reply.body["messages"].([]any)
	require.Len(t, msgs, 2)
	assert.Equal(t, "sticker", msgs[0].(map[string]any)["type"])
	assert.Equal(t, "11537", msgs[0].(map[string]any)["packageId"])
	assert.Equal(t, "52002746", msgs[0].(map[string]any)["stickerId"])
	assert.Equal(t, MsgEditing, msgs[1].(map[string]any)["text"])

	push := (*calls)[1]
	assert.Equal(t, "/v2/bot/message/push", push.path)
	assert.Equal(t, "U1", push.body["to"])
	msgs = push.body["messages"].([]any)
	require.Len(t, msgs, 2)
	assert.Equal(t, "image", msgs[0].(map[string]any)["type"])
	assert.Equal(t, "flex", msgs[1].(map[string]any)["type"])
}

func TestPostErrors(t *testing.T) {
	c, calls := newAPIServer(t, http.StatusBadRequest)

	err := c.Reply(t.Context(), "rt", Text("x"))
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)

	assert.Error(t, c.Reply(t.Context(), "", Text("x")))
	assert.Error(t, c.Push(t.Context(), "U1"))
	assert.Error(t, c.Push(t.Context(), "U1", Text("1"), Text("2"), Text("3"), Text("4"), Text("5"), Text("6")))
	assert.Len(t, *calls, 1, "validation failures never reach the API")
}

func TestStartLoadingClamps(t *testing.T) {
	c, calls := newAPIServer(t, http.StatusAccepted)

	for _, secs := range []int{0, 30, 600} {
		require.NoError(t, c.StartLoading(t.Context(), "U1", secs))
	}
	require.Len(t, *calls, 3)
	assert.Equal(t, "/v2/bot/chat/loading/start", (*calls)[0].path)
	assert.Equal(t, "U1", (*calls)[0].body["chatId"])
	assert.EqualValues(t, 5, (*calls)[0].body["loadingSeconds"])
	assert.EqualValues(t, 30, (*calls)[1].body["loadingSeconds"])
	assert.EqualValues(t, 60, (*calls)[2].body["loadingSeconds"])
}

func newContentServer(t *testing.T, statuses ...int) (*Client, *int32) {
	t.Helper()
	var n int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		i := atomic.AddInt32(&n, 1) - 1
		assert.Equal(t, "/v2/bot/message/m1/content", r.URL.Path)
		status := statuses[min(int(i), len(statuses)-1)]
		if status == http.StatusOK {
			w.Header().Set("Content-Type", "image/png")
		}
		w.WriteHeader(status)
		if status == http.StatusOK {
			io.WriteString(w, "png-bytes")
		}
	}))
	t.Cleanup(srv.Close)
	c, err := New("token", testLogger(), WithEndpoints(srv.URL, srv.URL))
	require.NoError(t, err)
	c.retryDelay = time.Millisecond
	return c, &n
}

func TestContent(t *testing.T) {
	c, n := newContentServer(t, http.StatusOK)
	blob, err := c.Content(t.Context(), "m1")
	require.NoError(t, err)
	assert.Equal(t, gallery.MediaBlob{Data: []byte("png-bytes"), MimeType: "image/png"}, blob)
	assert.EqualValues(t, 1, atomic.LoadInt32(n))
}

func TestContentRetriesServerErrors(t *testing.T) {
	c, n := newContentServer(t, http.StatusBadGateway, http.StatusOK)
	blob, err := c.Content(t.Context(), "m1")
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(blob.Data))
	assert.EqualValues(t, 2, atomic.LoadInt32(n))
}

func TestContentGone(t *testing.T) {
	for _, status := range []int{http.StatusNotFound, http.StatusGone} {
		c, n := newContentServer(t, status)
		_, err := c.Content(t.Context(), "m1")
		assert.ErrorIs(t, err, ErrContentGone)
		assert.EqualValues(t, 1, atomic.LoadInt32(n), "gone content is not retried")
	}
}

func TestContentClientErrorNotRetried(t *testing.T) {
	c, n := newContentServer(t, http.StatusUnauthorized)
	_, err := c.Content(t.Context(), "m1")
	assert.ErrorIs(t, err, ErrDownloadFailed)
	assert.NotErrorIs(t, err, ErrContentGone)
	assert.EqualValues(t, 1, atomic.LoadInt32(n))
}

func TestContentServerErrorExhausted(t *testing.T) {
	c, n := newContentServer(t, http.StatusInternalServerError)
	_, err := c.Content(t.Context(), "m1")
	assert.ErrorIs(t, err, ErrDownloadFailed)
	assert.EqualValues(t, 3, atomic.LoadInt32(n))
}

func TestTemplates(t *testing.T) {
	assert.Equal(t, "申し訳ありません。画像が見つかりませんでした。\n(ID: deadbeef1)", NotFoundText("deadbeef1"))
	assert.Equal(t, "オウム返し: hello", EchoText("hello"))

	msg := NotConvertedText(gallery.Analysis{SubjectPresent: true})
	assert.Contains(t, msg, "✅ 人の顔を検出しました")
	assert.Contains(t, msg, "❌ ポーズが検出されませんでした")
	assert.True(t, strings.HasSuffix(msg, "ガッツポーズなどをしてみてください！"))
}

func TestCards(t *testing.T) {
	card := ResultCard("https://img/a.png", "https://liff.line.me/L/048361ed1")
	b, err := json.Marshal(card)
	require.NoError(t, err)
	s := string(b)
	assert.Contains(t, s, `"altText":"📸 画像をスライドショーで見る - Boom!ヒーロー!!"`)
	assert.Contains(t, s, `"uri":"https://liff.line.me/L/048361ed1"`)
	assert.Contains(t, s, `"url":"https://img/a.png"`)
	assert.Contains(t, s, MsgHeroTitle)
	assert.Contains(t, s, `"action":{"type":"uri","label":"`+MsgSlideshowButton+`","uri":"https://liff.line.me/L/048361ed1"}`)

	welcome := WelcomeCard()
	require.NotNil(t, welcome.QuickReply)
	assert.Len(t, welcome.QuickReply.Items, 2)
	assert.Equal(t, "camera", welcome.QuickReply.Items[0].Action.Type)
	assert.Equal(t, "cameraRoll", welcome.QuickReply.Items[1].Action.Type)
	b, err = json.Marshal(welcome)
	require.NoError(t, err)
	assert.Contains(t, string(b), MsgWelcomeFooter)
	assert.NotContains(t, string(b), `"uri":""`)
}

func TestClampLoadingSeconds(t *testing.T) {
	assert.Equal(t, 5, ClampLoadingSeconds(-1))
	assert.Equal(t, 5, ClampLoadingSeconds(5))
	assert.Equal(t, 42, ClampLoadingSeconds(42))
	assert.Equal(t, 60, ClampLoadingSeconds(61))
}

func TestMessagesAreSDKMessages(t *testing.T) {
	msgs := []messaging_api.MessageInterface{
		Text("hi"),
		Sticker(EditingStickerPackage, EditingStickerID),
		Image("https://x/a.png"),
		WelcomeCard(),
	}
	var types []string
	for _, m := range msgs {
		types = append(types, m.GetType())
	}
	assert.Equal(t, []string{"text", "sticker", "image", "flex"}, types)
}

func TestTransportErrorIsNotAPIError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	c, err := New("token", testLogger(), WithEndpoints(srv.URL, srv.URL))
	require.NoError(t, err)
	err = c.Push(t.Context(), "U1", Text("x"))
	require.Error(t, err)
	var apiErr *APIError
	assert.False(t, errors.As(err, &apiErr))
}
