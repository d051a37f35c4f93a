// Package queue transporta jobs de processamento de arquivos fiscais via
// RabbitMQ, com fila morta (DLQ) e reenfileiramento limitado.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Job descreve um arquivo aguardando processamento.
type Job struct {
	Path     string `json:"path"`
	Filename string `json:"filename"`
	Kind     string `json:"kind"` // "xml" ou "zip"
}

type RabbitMQ struct {
	conn       *amqp.Connection
	ch         *amqp.Channel
	queueName  string
	confirmCh  <-chan amqp.Confirmation
	maxRetries int
	prefetch   int
}

func NewRabbitMQ(url, queueName string) (*RabbitMQ, error) {
	maxRetries := envInt("FISCAL_LENS_RABBITMQ_MAX_RETRIES", 3)
	prefetch := envInt("FISCAL_LENS_RABBITMQ_PREFETCH", 10)

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("erro conectando no RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("erro abrindo canal no RabbitMQ: %w", err)
	}

	if err := declararTopologia(ch, queueName); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}

	if err := ch.Qos(prefetch, 0, false); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("erro configurando QoS (prefetch=%d): %w", prefetch, err)
	}

	// publisher confirms
	if err := ch.Confirm(false); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("erro habilitando publisher confirms: %w", err)
	}

	confirmCh := ch.NotifyPublish(make(chan amqp.Confirmation, prefetch*2))

	return &RabbitMQ{
		conn:       conn,
		ch:         ch,
		queueName:  queueName,
		confirmCh:  confirmCh,
		maxRetries: maxRetries,
		prefetch:   prefetch,
	}, nil
}

// declararTopologia declara a fila principal apontando para um DLX/DLQ:
// mensagens rejeitadas sem requeue caem na fila morta.
func declararTopologia(ch *amqp.Channel, queueName string) error {
	dlxName := queueName + ".dlx"
	dlqName := queueName + ".dlq"

	if err := ch.ExchangeDeclare(dlxName, "direct", true, false, false, false, nil); err != nil {
		return fmt.Errorf("erro declarando exchange DLX %q: %w", dlxName, err)
	}

	if _, err := ch.QueueDeclare(dlqName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("erro declarando fila DLQ %q: %w", dlqName, err)
	}

	if err := ch.QueueBind(dlqName, dlqName, dlxName, false, nil); err != nil {
		return fmt.Errorf("erro bindando DLQ %q no DLX %q: %w", dlqName, dlxName, err)
	}

	args := amqp.Table{
		"x-dead-letter-exchange":    dlxName,
		"x-dead-letter-routing-key": dlqName,
	}
	if _, err := ch.QueueDeclare(queueName, true, false, false, false, args); err != nil {
		return fmt.Errorf("erro declarando fila %q: %w", queueName, err)
	}

	return nil
}

func (r *RabbitMQ) publish(ctx context.Context, body []byte, headers amqp.Table) error {
	if headers == nil {
		headers = amqp.Table{}
	}
	if _, ok := headers["x-retries"]; !ok {
		headers["x-retries"] = int32(0)
	}

	err := r.ch.PublishWithContext(
		ctx,
		"", // exchange padrão
		r.queueName,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
			Headers:      headers,
		},
	)
	if err != nil {
		return fmt.Errorf("erro publicando mensagem no RabbitMQ: %w", err)
	}

	// Espera confirmação do broker
	select {
	case conf := <-r.confirmCh:
		if !conf.Ack {
			return fmt.Errorf("mensagem não confirmada pelo broker")
		}
	case <-ctx.Done():
		return ctx.Err()
	}

	return nil
}

func (r *RabbitMQ) PublishJob(ctx context.Context, job Job) error {
	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("erro serializando job: %w", err)
	}

	return r.publish(ctx, body, amqp.Table{
		"x-retries": int32(0),
	})
}

// ConsumeJobs entrega cada job ao handler. Erro do handler reenfileira até
// maxRetries; depois disso a mensagem vai para a DLQ.
func (r *RabbitMQ) ConsumeJobs(ctx context.Context, handler func(Job) error) error {
	msgs, err := r.ch.Consume(r.queueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("erro iniciando consumo do RabbitMQ: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case msg, ok := <-msgs:
			if !ok {
				return fmt.Errorf("canal de mensagens encerrado")
			}

			var job Job
			if err := json.Unmarshal(msg.Body, &job); err != nil {
				slog.Error("erro de unmarshal de job do RabbitMQ", "err", err)
				_ = msg.Ack(false)
				continue
			}

			if err := handler(job); err != nil {
				r.reprocessarOuDescartar(ctx, msg, job, err)
				continue
			}

			_ = msg.Ack(false)
		}
	}
}

func (r *RabbitMQ) reprocessarOuDescartar(ctx context.Context, msg amqp.Delivery, job Job, causa error) {
	retries := extractRetries(msg.Headers)

	if retries >= r.maxRetries {
		slog.Error("erro processando job, enviando para DLQ",
			"path", job.Path,
			"filename", job.Filename,
			"kind", job.Kind,
			"retries", retries,
			"max_retries", r.maxRetries,
			"err", causa,
		)
		// Nack sem requeue → vai pro DLQ por causa do DLX
		_ = msg.Nack(false, false)
		return
	}

	slog.Warn("erro processando job, reenfileirando",
		"path", job.Path,
		"filename", job.Filename,
		"kind", job.Kind,
		"retries", retries,
		"max_retries", r.maxRetries,
		"err", causa,
	)

	headers := msg.Headers
	if headers == nil {
		headers = amqp.Table{}
	}
	headers["x-retries"] = int32(retries + 1)

	pubCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if perr := r.publish(pubCtx, msg.Body, headers); perr != nil {
		slog.Error("falha ao reenfileirar job", "err", perr)
	}

	_ = msg.Ack(false)
}

func (r *RabbitMQ) Close() error {
	if r.ch != nil {
		_ = r.ch.Close()
	}
	if r.conn != nil {
		return r.conn.Close()
	}
	return nil
}

func extractRetries(h amqp.Table) int {
	if h == nil {
		return 0
	}
	v, ok := h["x-retries"]
	if !ok {
		return 0
	}

	switch t := v.(type) {
	case int32:
		return int(t)
	case int64:
		return int(t)
	case float32:
		return int(t)
	case float64:
		return int(t)
	default:
		return 0
	}
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}
