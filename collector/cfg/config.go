package cfg

import (
	"encoding/json"
	"net"
	"os"

	"github.com/go-errors/errors"
	log "github.com/sirupsen/logrus"
)

type Config interface {
	Port() uint
	Host() string
	AllowRemote() bool
	MaxMemory() int64
	DumpsDir() string
	RabbitServer() string
	RabbitQueue() string
	ElasticUrl() string
	ElasticIndex() string
	Memcache() []string
	RedisAddres() string
	RedisPassword() string
	LogLevel() string

	// monitoring
	MonitoringEnable() bool
}

const (
	DefaultHost         = "127.0.0.1"
	DefaultMaxMemory    = 32 << 20
	DefaultElasticIndex = "crashes"
)

// Default returns a loopback configuration on an ephemeral port with every
// forwarding sink disabled.
func Default() *JsonConfig {
	return &JsonConfig{
		Server:     &WebServerCfg{Host: DefaultHost},
		Dumps:      &DumpsCfg{},
		Rabbit:     &RabbitCfg{},
		Elastic:    &ElasticCfg{},
		Cache:      &CacheCfg{},
		Log:        &LogCfg{Level: "info"},
		Monitoring: &MonitoringCfg{},
	}
}

func FromJson(pathTo string) (Config, error) {
	file, err := os.Open(pathTo)
	if err != nil {
		log.WithError(err).Error("Get config failed")
		return nil, errors.Wrap(err, 0)
	}
	defer file.Close()

	jconf := Default()
	decoder := json.NewDecoder(file)
	err = decoder.Decode(jconf)
	if err != nil {
		log.WithError(err).Error("Error at cfg parsing")
		return nil, errors.Wrap(err, 0)
	}

	if err := Validate(jconf); err != nil {
		return nil, err
	}
	return jconf, nil
}

func Validate(c *JsonConfig) error {
	if c.Server == nil || len(c.Server.Host) == 0 {
		return errors.New("web_server.host is not set")
	}
	if c.Server.Port > 65535 {
		return errors.Errorf("web_server.port %d is out of range", c.Server.Port)
	}
	if !c.Server.AllowRemote && !IsLoopback(c.Server.Host) {
		return errors.Errorf("web_server.host %q is not a loopback address", c.Server.Host)
	}
	if c.Rabbit != nil && len(c.Rabbit.Server) != 0 && len(c.Rabbit.Queue) == 0 {
		return errors.New("rabbit_cfg.queue is not set")
	}
	return nil
}

// IsLoopback reports whether host is "localhost" or a loopback IP.
func IsLoopback(host string) bool {
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
