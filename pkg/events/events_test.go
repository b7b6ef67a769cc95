package events

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/bankd/pkg/models"
)

func TestEventMarshal(t *testing.T) {
	e := New(TypeTransfer, 2)
	e.Account = "SB10001"
	e.Counterparty = "SB10002"
	e.Amount = models.Rupees(300)

	raw, err := e.Marshal()
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "transfer", decoded["type"])
	assert.Equal(t, "SB10002", decoded["counterparty"])
	assert.EqualValues(t, 30000, decoded["amount_paise"])
	assert.NotEmpty(t, decoded["id"])
	assert.Equal(t, []byte("SB10001"), e.Key())
}

func TestKeyFallsBackToType(t *testing.T) {
	e := New(TypeUserStatus, 4)
	assert.Equal(t, []byte("user_status"), e.Key())
}

func TestNewKafkaPublisherValidation(t *testing.T) {
	_, err := NewKafkaPublisher(KafkaConfig{Topic: "bank"})
	assert.Error(t, err)

	_, err = NewKafkaPublisher(KafkaConfig{Brokers: []string{"localhost:9092"}})
	assert.Error(t, err)

	p, err := NewKafkaPublisher(KafkaConfig{Brokers: []string{"localhost:9092"}, Topic: "bank", Async: true})
	require.NoError(t, err)
	assert.NoError(t, p.Close())
}

func TestNopPublisher(t *testing.T) {
	var p Publisher = NopPublisher{}
	assert.NoError(t, p.Publish(context.Background(), New(TypeDeposit, 1)))
	assert.NoError(t, p.Close())
}
