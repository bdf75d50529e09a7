package events

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorderFiltersByType(t *testing.T) {
	var r Recorder
	ctx := context.Background()
	require.NoError(t, r.Publish(ctx, New(TypeSaleRecorded, SaleRecorded{SaleID: "s1"})))
	require.NoError(t, r.Publish(ctx, New(TypeStockLow, StockLow{ItemID: "1"})))

	assert.Len(t, r.Events(""), 2)
	low := r.Events(TypeStockLow)
	require.Len(t, low, 1)
	assert.Equal(t, StockLow{ItemID: "1"}, low[0].Payload)
}

func TestLogPublisher(t *testing.T) {
	assert.NoError(t, LogPublisher{}.Publish(context.Background(), New(TypeStockLow, StockLow{})))
}

func TestAMQPPublisher(t *testing.T) {
	url := os.Getenv("AMQP_URL")
	if url == "" {
		t.Skip("AMQP_URL not set")
	}
	exchange := "zaloga-test"

	p, err := DialAMQP(url, exchange)
	require.NoError(t, err)
	defer p.Close()

	conn, err := amqp.Dial(url)
	require.NoError(t, err)
	defer conn.Close()
	ch, err := conn.Channel()
	require.NoError(t, err)
	q, err := ch.QueueDeclare("", false, true, true, false, nil)
	require.NoError(t, err)
	require.NoError(t, ch.QueueBind(q.Name, "stock.*", exchange, false, nil))
	msgs, err := ch.Consume(q.Name, "", true, true, false, false, nil)
	require.NoError(t, err)

	require.NoError(t, p.Publish(context.Background(), New(TypeStockLow, StockLow{ItemID: "1", Quantity: 3})))

	select {
	case m := <-msgs:
		assert.Equal(t, TypeStockLow, m.RoutingKey)
		var got struct {
			Type    string   `json:"type"`
			Payload StockLow `json:"payload"`
		}
		require.NoError(t, json.Unmarshal(m.Body, &got))
		assert.Equal(t, 3, got.Payload.Quantity)
	case <-time.After(5 * time.Second):
		t.Fatal("no message delivered")
	}
}
