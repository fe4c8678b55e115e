package email

import (
	"net/smtp"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sentMail struct {
	addr string
	from string
	to   []string
	msg  string
}

func newCapturingService() (*Service, *[]sentMail) {
	var sent []sentMail
	s := NewService("mail.local", "2525", "shop@example.com")
	s.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		sent = append(sent, sentMail{addr: addr, from: from, to: to, msg: string(msg)})
		return nil
	}
	return s, &sent
}

func TestService_SendOrderConfirmation(t *testing.T) {
	s, sent := newCapturingService()

	items := []OrderItem{
		{ProductID: "p1", Name: "Mug <Large>", Quantity: 2, Price: decimal.RequireFromString("10")},
		{ProductID: "p2", Quantity: 1, Price: decimal.RequireFromString("2.5")},
	}
	err := s.SendOrderConfirmation("alice@example.com", "0123456789abcdef", "cod", decimal.RequireFromString("22.5"), items)

	require.NoError(t, err)
	require.Len(t, *sent, 1)
	mail := (*sent)[0]
	assert.Equal(t, "mail.local:2525", mail.addr)
	assert.Equal(t, []string{"alice@example.com"}, mail.to)
	assert.Contains(t, mail.msg, "Subject: Order confirmation (01234567)")
	assert.Contains(t, mail.msg, "Mug &lt;Large&gt;")
	assert.Contains(t, mail.msg, ">p2<")
	assert.Contains(t, mail.msg, "20.00")
	assert.Contains(t, mail.msg, "Total 22.50")
}

func TestService_SendOrderCancelled(t *testing.T) {
	s, sent := newCapturingService()

	err := s.SendOrderCancelled("alice@example.com", "order-1", []OrderItem{
		{ProductID: "p1", Name: "Mug", Quantity: 1, Price: decimal.NewFromInt(10)},
	})

	require.NoError(t, err)
	require.Len(t, *sent, 1)
	assert.Contains(t, (*sent)[0].msg, "Subject: Order cancelled (order-1)")
	assert.Contains(t, (*sent)[0].msg, "Mug")
}

func TestService_SendStatusUpdate(t *testing.T) {
	s, sent := newCapturingService()

	err := s.SendStatusUpdate("alice@example.com", "order-1", "confirmed", "shipped")

	require.NoError(t, err)
	require.Len(t, *sent, 1)
	msg := (*sent)[0].msg
	assert.Contains(t, msg, "Subject: Order order-1 is now shipped")
	assert.True(t, strings.Contains(msg, "<strong>confirmed</strong>"))
	assert.True(t, strings.Contains(msg, "<strong>shipped</strong>"))
}
