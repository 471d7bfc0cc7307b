package config

import (
	"strings"
	"time"
)

const (
	defaultHTTPAddr          = ":3001"
	defaultMaxUploadMB       = 50
	defaultReadHeaderTimeout = 5 * time.Second
	defaultShutdownTimeout   = 10 * time.Second
	defaultWorkers           = 4
	defaultRequeueInterval   = 30 * time.Second
	defaultJanitorInterval   = 10 * time.Minute
	defaultLockTTL           = 30 * time.Minute
	defaultMaxExtractMB      = 1024
	defaultConverterTimeout  = 5 * time.Minute
)

type HTTPConfig struct {
	Addr        string   `env:"HTTP_ADDR" envDefault:":3001"`
	MaxUploadMB int64    `env:"HTTP_MAX_UPLOAD_MB" envDefault:"50"`
	CORSOrigins []string `env:"HTTP_CORS_ORIGINS" envDefault:"*"`

	ReadHeaderTimeout time.Duration `env:"HTTP_READ_HEADER_TIMEOUT" envDefault:"5s"`
	ShutdownTimeout   time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

func (h *HTTPConfig) Sanitize() {
	if strings.TrimSpace(h.Addr) == "" {
		h.Addr = defaultHTTPAddr
	}
	if h.MaxUploadMB <= 0 {
		h.MaxUploadMB = defaultMaxUploadMB
	}
	if h.ReadHeaderTimeout <= 0 {
		h.ReadHeaderTimeout = defaultReadHeaderTimeout
	}
	if h.ShutdownTimeout <= 0 {
		h.ShutdownTimeout = defaultShutdownTimeout
	}
	origins := h.CORSOrigins[:0]
	for _, o := range h.CORSOrigins {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	h.CORSOrigins = origins
}

// MaxUploadBytes is the upload limit in bytes.
func (h HTTPConfig) MaxUploadBytes() int64 {
	return h.MaxUploadMB << 20
}

type StoreConfig struct {
	Driver      string `env:"STORE_DRIVER" envDefault:"memory"`
	PostgresDSN string `env:"POSTGRES_DSN"`
}

type QueueConfig struct {
	Driver          string        `env:"QUEUE_DRIVER" envDefault:"memory"`
	RequeueInterval time.Duration `env:"REQUEUE_INTERVAL" envDefault:"30s"`
}

type RedisConfig struct {
	Addr          string        `env:"ADDR" envDefault:"localhost:6379"`
	Password      string        `env:"PASSWORD"`
	DB            int           `env:"DB" envDefault:"0"`
	QueueKey      string        `env:"QUEUE_KEY" envDefault:"shpkml:queue"`
	ProcessingKey string        `env:"PROCESSING_KEY" envDefault:"shpkml:processing"`
	LockPrefix    string        `env:"LOCK_PREFIX" envDefault:"shpkml:lock:job:"`
	LockTTL       time.Duration `env:"LOCK_TTL" envDefault:"30m"`
}

type WorkerConfig struct {
	Workers int `env:"WORKERS" envDefault:"4"`
}

func (w *WorkerConfig) Sanitize() {
	if w.Workers <= 0 {
		w.Workers = defaultWorkers
	}
}

type WorkspaceConfig struct {
	Root string `env:"WORKSPACE_ROOT" envDefault:"./data"`
	// OutputRetention of 0 keeps outputs indefinitely.
	OutputRetention time.Duration `env:"OUTPUT_RETENTION" envDefault:"0"`
	JanitorInterval time.Duration `env:"JANITOR_INTERVAL" envDefault:"10m"`
	// MaxExtractMB caps the uncompressed size of one uploaded archive.
	MaxExtractMB int64 `env:"WORKSPACE_MAX_EXTRACT_MB" envDefault:"1024"`
}

func (c WorkspaceConfig) MaxExtractBytes() int64 {
	return c.MaxExtractMB << 20
}

type ConverterConfig struct {
	Command          []string      `env:"COMMAND" envDefault:"python3,-u,scripts/shapefile_to_kml.py"`
	NameField        string        `env:"NAME_FIELD" envDefault:"id"`
	DescriptionField string        `env:"DESCRIPTION_FIELD" envDefault:"JOORA"`
	Timeout          time.Duration `env:"TIMEOUT" envDefault:"5m"`
}

func (c *ConverterConfig) Sanitize() {
	cmd := c.Command[:0]
	for _, a := range c.Command {
		if a = strings.TrimSpace(a); a != "" {
			cmd = append(cmd, a)
		}
	}
	c.Command = cmd
	if c.Timeout <= 0 {
		c.Timeout = defaultConverterTimeout
	}
}
