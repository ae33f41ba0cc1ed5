package browser

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"testing"
	"time"

	"github.com/go-rod/rod/lib/launcher"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"simplepos/internal/intake"
)

func TestSubmitWithoutActionSkipsLaunch(t *testing.T) {
	sink := New("", zerolog.Nop())

	err := sink.Submit(context.Background(), intake.Form{Name: intake.AdjustmentFormName})
	require.ErrorIs(t, err, intake.ErrNoAction)
	assert.Nil(t, sink.browser)
	assert.NoError(t, sink.Close())
}

func TestSubmitPostsHiddenForm(t *testing.T) {
	bin := os.Getenv("SIMPLEPOS_TEST_BROWSER_BIN")
	if bin == "" {
		path, ok := launcher.LookPath()
		if !ok {
			t.Skip("set SIMPLEPOS_TEST_BROWSER_BIN or install chromium to run browser submission test")
		}
		bin = path
	}

	received := make(chan url.Values, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost && r.ParseForm() == nil {
			select {
			case received <- r.PostForm:
			default:
			}
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	sink := New(bin, zerolog.Nop())
	sink.settle = 200 * time.Millisecond
	t.Cleanup(func() { _ = sink.Close() })

	form := intake.Form{
		Name:   intake.AdjustmentFormName,
		Action: srv.URL + "/formResponse",
		Fields: []intake.Field{
			{Name: "entry.1", Value: "Rice 5kg"},
			{Name: "entry.2", Value: "a & b"},
		},
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	require.NoError(t, sink.Submit(ctx, form))

	select {
	case values := <-received:
		assert.Equal(t, "Rice 5kg", values.Get("entry.1"))
		assert.Equal(t, "a & b", values.Get("entry.2"))
	case <-time.After(10 * time.Second):
		t.Fatal("form endpoint never received the submission")
	}
}
