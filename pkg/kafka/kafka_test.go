package kafka

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessagesEncodesJSON(t *testing.T) {
	msgs, err := Messages([]Event{
		{Key: "q1", Value: map[string]int{"label": 3}},
		{Key: "q2", Value: []string{"a"}},
	})
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, []byte("q1"), msgs[0].Key)
	assert.JSONEq(t, `{"label":3}`, string(msgs[0].Value))
	assert.JSONEq(t, `["a"]`, string(msgs[1].Value))
}

func TestMessagesRejectsUnencodableValue(t *testing.T) {
	_, err := Messages([]Event{{Key: "bad", Value: make(chan int)}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad")
}

func TestDecodeJSON(t *testing.T) {
	type msg struct {
		ID string `json:"id"`
	}
	got, err := DecodeJSON[msg]([]byte(`{"id":"q7"}`))
	require.NoError(t, err)
	assert.Equal(t, "q7", got.ID)

	_, err = DecodeJSON[msg]([]byte(`{`))
	require.Error(t, err)
}
