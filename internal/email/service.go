package email

import (
	"fmt"
	"net/smtp"

	"github.com/shopspring/decimal"
)

// Service handles email sending via SMTP
type Service struct {
	host string
	port string
	from string
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewService creates a new email service
func NewService(host, port, from string) *Service {
	return &Service{
		host: host,
		port: port,
		from: from,
		send: smtp.SendMail,
	}
}

func shortID(orderID string) string {
	if len(orderID) > 8 {
		return orderID[:8]
	}
	return orderID
}

// SendOrderConfirmation sends an order confirmation email
func (s *Service) SendOrderConfirmation(to, orderID, paymentMethod string, total decimal.Decimal, items []OrderItem) error {
	body, err := BuildOrderConfirmationBody(orderID, paymentMethod, total, items)
	if err != nil {
		return err
	}
	return s.deliver(to, fmt.Sprintf("Order confirmation (%s)", shortID(orderID)), body)
}

func (s *Service) SendOrderCancelled(to, orderID string, items []OrderItem) error {
	body, err := BuildCancellationBody(orderID, items)
	if err != nil {
		return err
	}
	return s.deliver(to, fmt.Sprintf("Order cancelled (%s)", shortID(orderID)), body)
}

func (s *Service) SendStatusUpdate(to, orderID, from, status string) error {
	body, err := BuildStatusUpdateBody(orderID, from, status)
	if err != nil {
		return err
	}
	return s.deliver(to, fmt.Sprintf("Order %s is now %s", shortID(orderID), status), body)
}

func (s *Service) deliver(to, subject, body string) error {
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/html; charset=UTF-8\r\n\r\n%s",
		s.from, to, subject, body)
	addr := fmt.Sprintf("%s:%s", s.host, s.port)
	return s.send(addr, nil, s.from, []string{to}, []byte(msg))
}
