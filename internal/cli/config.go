package cli

import "os"

// Config はCLIの設定を保持する。
type Config struct {
	ServerURL string
	Token     string
	Output    string
}

// DefaultConfig は環境変数を反映した既定の設定を返す。
func DefaultConfig() *Config {
	return &Config{
		ServerURL: getEnvOrDefault("GROSYNC_SERVER", "http://localhost:8080"),
		Token:     os.Getenv("GROSYNC_TOKEN"),
		Output:    "text",
	}
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
