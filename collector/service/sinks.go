package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-errors/errors"
	logger "github.com/sirupsen/logrus"
	"github.com/streadway/amqp"

	"github.com/iqoption/crashcollector/collector/cfg"
	"github.com/iqoption/crashcollector/collector/metrics"
	"github.com/iqoption/crashcollector/common/data/base"
	"github.com/iqoption/crashcollector/common/format/minidump"
	"github.com/iqoption/crashcollector/common/task"
)

const cacheExpiration = time.Hour * 24 * 30

// Sink receives every collected crash after the uploader was answered.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, report *minidump.Report) error
	Close() error
}

// RabbitSink publishes crashes as task.Dump messages to a durable queue.
type RabbitSink struct {
	connection *amqp.Connection
	channel    *amqp.Channel
	queue      amqp.Queue
}

func (r *RabbitSink) Name() string {
	return "rabbit"
}

func (r *RabbitSink) Deliver(_ context.Context, report *minidump.Report) error {
	msg, err := json.Marshal(task.CreateDumpTask(report))
	if err != nil {
		logger.WithError(err).Error("Can't serialize message")
		return errors.Wrap(err, 0)
	}
	err = r.channel.Publish("",
		r.queue.Name,
		false,
		false,
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			MessageId:    report.Id,
			Body:         msg,
		})
	if err != nil {
		return errors.Wrap(err, 0)
	}
	return nil
}

func (r *RabbitSink) Close() error {
	r.channel.Close()
	return r.connection.Close()
}

func NewRabbitSink(server, queue string) (*RabbitSink, error) {
	conn, err := amqp.Dial(server)
	if err != nil {
		logger.WithError(err).Error("Failed to connect to RabbitMQ")
		return nil, errors.Wrap(err, 0)
	}

	ch, err := conn.Channel()
	if err != nil {
		logger.WithError(err).Error("Failed to open a channel")
		conn.Close()
		return nil, errors.Wrap(err, 0)
	}

	q, err := ch.QueueDeclare(
		queue,
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		logger.WithError(err).Error("Failed to declare a queue")
		conn.Close()
		return nil, errors.Wrap(err, 0)
	}

	return &RabbitSink{conn, ch, q}, nil
}

// RepositorySink indexes crashes in Elasticsearch.
type RepositorySink struct {
	repository *base.Repository
}

func (r *RepositorySink) Name() string {
	return "elastic"
}

func (r *RepositorySink) Deliver(ctx context.Context, report *minidump.Report) error {
	return r.repository.AddReport(ctx, report)
}

func (r *RepositorySink) Close() error {
	return nil
}

func NewRepositorySink(repository *base.Repository) *RepositorySink {
	return &RepositorySink{repository: repository}
}

// NewCache picks memcached when servers are configured, Redis when an
// address is, and nothing otherwise.
func NewCache(c cfg.Config) (base.Cashe, error) {
	if len(c.Memcache()) > 0 {
		return base.NewMemcache(c.Memcache(), cacheExpiration)
	}
	if len(c.RedisAddres()) > 0 {
		return base.NewRedis(c.RedisAddres(), c.RedisPassword(), cacheExpiration)
	}
	return nil, nil
}

// NewCollector builds a collector with the sinks enabled in c.
func NewCollector(c cfg.Config, m *metrics.Metrics) (*CollectorService, error) {
	var sinks []Sink

	if len(c.RabbitServer()) > 0 {
		rabbit, err := NewRabbitSink(c.RabbitServer(), c.RabbitQueue())
		if err != nil {
			logger.Error("Can't connect to rabbit")
			return nil, err
		}
		sinks = append(sinks, rabbit)
	}

	if len(c.ElasticUrl()) > 0 {
		cache, err := NewCache(c)
		if err != nil {
			logger.WithError(err).Warning("Can't connect to cache, continue without it")
			cache = nil
		}
		rep, err := base.NewRepository(c.ElasticUrl(), c.ElasticIndex(), cache)
		if err != nil {
			logger.WithError(err).Error("Can't create repository")
			closeSinks(sinks)
			return nil, err
		}
		sinks = append(sinks, NewRepositorySink(rep))
	}

	return New(m, sinks...), nil
}

func closeSinks(sinks []Sink) {
	for _, s := range sinks {
		s.Close()
	}
}
