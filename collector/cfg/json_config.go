package cfg

type WebServerCfg struct {
	Port        uint   `json:"port"`
	Host        string `json:"host"`
	AllowRemote bool   `json:"allow_remote"`
	MaxMemory   int64  `json:"max_memory"`
}

type DumpsCfg struct {
	Dir string `json:"dir"`
}

type RabbitCfg struct {
	Server string `json:"server"`
	Queue  string `json:"queue"`
}

type ElasticCfg struct {
	Url   string `json:"url"`
	Index string `json:"index"`
}

type RedisCfg struct {
	Address  string `json:"address"`
	Password string `json:"password"`
}

type CacheCfg struct {
	Memcached []string `json:"memcache"`
	Redis     RedisCfg `json:"redis"`
}

type LogCfg struct {
	Level string `json:"level"`
}

type MonitoringCfg struct {
	Enable bool `json:"enable"`
}

type JsonConfig struct {
	Server     *WebServerCfg  `json:"web_server"`
	Dumps      *DumpsCfg      `json:"dumps"`
	Rabbit     *RabbitCfg     `json:"rabbit_cfg"`
	Elastic    *ElasticCfg    `json:"elastic"`
	Cache      *CacheCfg      `json:"cache"`
	Log        *LogCfg        `json:"log"`
	Monitoring *MonitoringCfg `json:"monitoring"`
}

func (cfg *JsonConfig) Port() uint {
	return cfg.Server.Port
}

func (cfg *JsonConfig) Host() string {
	return cfg.Server.Host
}

func (cfg *JsonConfig) AllowRemote() bool {
	return cfg.Server.AllowRemote
}

func (cfg *JsonConfig) MaxMemory() int64 {
	if cfg.Server.MaxMemory <= 0 {
		return DefaultMaxMemory
	}
	return cfg.Server.MaxMemory
}

func (cfg *JsonConfig) DumpsDir() string {
	if cfg.Dumps == nil {
		return ""
	}
	return cfg.Dumps.Dir
}

func (cfg *JsonConfig) RabbitServer() string {
	if cfg.Rabbit == nil {
		return ""
	}
	return cfg.Rabbit.Server
}

func (cfg *JsonConfig) RabbitQueue() string {
	if cfg.Rabbit == nil {
		return ""
	}
	return cfg.Rabbit.Queue
}

func (cfg *JsonConfig) ElasticUrl() string {
	if cfg.Elastic == nil {
		return ""
	}
	return cfg.Elastic.Url
}

func (cfg *JsonConfig) ElasticIndex() string {
	if cfg.Elastic == nil || len(cfg.Elastic.Index) == 0 {
		return DefaultElasticIndex
	}
	return cfg.Elastic.Index
}

func (cfg *JsonConfig) Memcache() []string {
	if cfg.Cache == nil {
		return nil
	}
	return cfg.Cache.Memcached
}

func (cfg *JsonConfig) RedisAddres() string {
	if cfg.Cache == nil {
		return ""
	}
	return cfg.Cache.Redis.Address
}

func (cfg *JsonConfig) RedisPassword() string {
	if cfg.Cache == nil {
		return ""
	}
	return cfg.Cache.Redis.Password
}

func (cfg *JsonConfig) LogLevel() string {
	if cfg.Log == nil {
		return ""
	}
	return cfg.Log.Level
}

func (cfg *JsonConfig) MonitoringEnable() bool {
	return cfg.Monitoring != nil && cfg.Monitoring.Enable
}
