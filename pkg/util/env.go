package util

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cast"
)

// LoadEnv 按运行环境加载 .env 文件（.env.development / .env.production）
// 已存在的环境变量优先，文件中的值不覆盖
func LoadEnv(env string) error {
	candidates := []string{fmt.Sprintf(".env.%s", env), ".env"}

	var loaded bool
	for _, name := range candidates {
		file, err := os.Open(name)
		if err != nil {
			continue
		}

		scanner := bufio.NewScanner(file)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			key, value, ok := strings.Cut(line, "=")
			if !ok {
				continue
			}
			key = strings.TrimSpace(key)
			value = strings.Trim(strings.TrimSpace(value), `"'`)
			if _, exists := os.LookupEnv(key); !exists {
				_ = os.Setenv(key, value)
			}
		}
		file.Close()
		loaded = true
	}

	if !loaded {
		return fmt.Errorf("no .env file found for env %q", env)
	}
	return nil
}

// GetEnv 获取环境变量，支持默认值
func GetEnv(key string, def ...string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	if len(def) > 0 {
		return def[0]
	}
	return ""
}

// GetIntEnv 获取整数类型的环境变量，解析失败返回0
func GetIntEnv(key string, def ...int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		if len(def) > 0 {
			return def[0]
		}
		return 0
	}
	return cast.ToInt64(v)
}

// GetBoolEnv 获取布尔类型的环境变量
func GetBoolEnv(key string) bool {
	return cast.ToBool(os.Getenv(key))
}
