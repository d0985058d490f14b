package claude

import (
	"sync"

	"flow-vce/pkg/config"
)

var (
	instance *Client
	once     sync.Once
)

// GetClient 获取Claude客户端单例实例
func GetClient(cfg *config.Config) *Client {
	// 只初始化一次
	once.Do(func() {
		instance = NewClient(cfg)
	})
	return instance
}
