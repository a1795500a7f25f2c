package logger

import (
	"os"
	"runtime"
	"strconv"
)

type Config struct {
	Level      Level             `json:"level"       yaml:"level"`
	Format     string            `json:"format"      yaml:"format"` // json, text, console
	Output     string            `json:"output"      yaml:"output"` // stdout, stderr, file
	FilePath   string            `json:"file_path"   yaml:"file_path"`
	MaxSize    int               `json:"max_size"    yaml:"max_size"` // MB
	MaxBackups int               `json:"max_backups" yaml:"max_backups"`
	MaxAge     int               `json:"max_age"     yaml:"max_age"` // days
	Compress   bool              `json:"compress"    yaml:"compress"`
	Fields     map[string]string `json:"fields"      yaml:"fields"` // static fields for k8s/docker
}

// envFields maps environment variables to the log field they populate.
var envFields = []struct{ env, field string }{
	{"KUBERNETES_NAMESPACE", "k8s_namespace"},
	{"KUBERNETES_POD_NAME", "k8s_pod"},
	{"KUBERNETES_NODE_NAME", "k8s_node"},
	{"HOSTNAME", "container_id"},
	{"DOCKER_IMAGE", "docker_image"},
	{"APP_NAME", "app_name"},
	{"APP_VERSION", "app_version"},
	{"APP_ENV", "environment"},
}

func GetDefaultFields() Fields {
	hostname, _ := os.Hostname()

	fields := Fields{
		"service":    "intellidraw",
		"hostname":   hostname,
		"pid":        os.Getpid(),
		"go_version": runtime.Version(),
	}

	for _, ef := range envFields {
		if v := os.Getenv(ef.env); v != "" {
			fields[ef.field] = v
		}
	}

	return fields
}

func NewDefaultConfig() *Config {
	config := &Config{
		Level:      LevelInfo,
		Format:     "console", // Default to console for development
		Output:     "stdout",
		MaxSize:    100,
		MaxBackups: 3,
		MaxAge:     28,
		Compress:   true,
		Fields:     make(map[string]string),
	}

	for k, v := range GetDefaultFields() {
		switch val := v.(type) {
		case string:
			config.Fields[k] = val
		case int:
			config.Fields[k] = strconv.Itoa(val)
		}
	}

	return config
}
