package whatsapp

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFactory_RequiresAuthDir(t *testing.T) {
	factory := NewFactory(Config{Headless: true})

	_, err := factory("a", "")
	assert.Error(t, err)
}

func TestNewFactory_BuildsUnstartedClient(t *testing.T) {
	factory := NewFactory(Config{Headless: true})

	c, err := factory("a", t.TempDir())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	// Sending before Start must fail cleanly, not panic.
	_, err = c.Send(ctx, "15551234567@c.us", "hi")
	assert.Error(t, err)

	assert.NoError(t, c.Destroy(ctx))
	assert.NoError(t, c.Destroy(ctx), "destroy is idempotent")

	_, ok := <-c.Events()
	assert.False(t, ok, "events channel closes on destroy")
}

func TestSendURL(t *testing.T) {
	tests := []struct {
		name    string
		address string
		body    string
		want    string
	}{
		{
			name:    "strips suffix",
			address: "15551234567@c.us",
			body:    "hi",
			want:    "https://web.whatsapp.com/send?phone=15551234567&text=hi",
		},
		{
			name:    "escapes message",
			address: "15551234567@c.us",
			body:    "hello there & welcome",
			want:    "https://web.whatsapp.com/send?phone=15551234567&text=hello+there+%26+welcome",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, sendURL(tt.address, tt.body))
		})
	}
}
