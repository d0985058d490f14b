package walrus

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"flow-vce/pkg/config"
	"flow-vce/pkg/logger"
	"flow-vce/pkg/types"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrEmptyBundle 没有可部署的文件
var ErrEmptyBundle = errors.New("walrus: bundle has no files")

// Deployer 站点部署器，目前为模拟实现：不上传任何数据，只生成部署记录
type Deployer struct {
	network string
	domain  string
	delay   time.Duration
	log     *zap.Logger
}

// NewDeployer 创建部署器
func NewDeployer(cfg *config.Config) *Deployer {
	return &Deployer{
		network: cfg.GetWalrusNetwork(),
		domain:  cfg.GetWalrusSitesDomain(),
		delay:   cfg.GetWalrusDeployDelay(),
		log:     logger.Named("walrus"),
	}
}

// Network 返回部署网络
func (d *Deployer) Network() string {
	return d.network
}

// Deploy 部署站点文件，siteName 作为子域名
func (d *Deployer) Deploy(ctx context.Context, files map[string][]byte, siteName string) (*types.Deployment, error) {
	if len(files) == 0 {
		return nil, ErrEmptyBundle
	}
	siteName = strings.TrimSpace(siteName)
	if siteName == "" {
		siteName = "my-site"
	}

	d.log.Info("开始部署站点",
		zap.String("site", siteName),
		zap.String("network", d.network),
		zap.Int("files", len(files)))

	// 模拟上传耗时
	if d.delay > 0 {
		timer := time.NewTimer(d.delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	deployment := &types.Deployment{
		ObjectID:          randomHex(),
		BlobID:            BlobID(files),
		URL:               fmt.Sprintf("https://%s.%s", siteName, d.domain),
		TransactionDigest: randomHex(),
	}

	d.log.Info("站点部署完成",
		zap.String("object_id", deployment.ObjectID),
		zap.String("url", deployment.URL))
	return deployment, nil
}

// Status 查询部署状态
func (d *Deployer) Status(ctx context.Context, objectID string) (*types.DeploymentStatus, error) {
	if objectID == "" {
		return nil, errors.New("walrus: object id is required")
	}
	return &types.DeploymentStatus{
		ObjectID: objectID,
		Status:   "published",
		URL:      fmt.Sprintf("https://%s/%s", d.domain, objectID),
	}, nil
}

// BlobID 根据文件内容计算确定的 blob 标识，相同内容得到相同结果
func BlobID(files map[string][]byte) string {
	paths := make([]string, 0, len(files))
	for p := range files {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	h := xxhash.New()
	for _, p := range paths {
		_, _ = h.WriteString(p)
		_, _ = h.Write([]byte{0})
		_, _ = h.Write(files[p])
		_, _ = h.Write([]byte{0})
	}

	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], h.Sum64())
	return "0x" + hex.EncodeToString(buf[:])
}

// randomHex 生成 0x 开头的 32 字节随机标识
func randomHex() string {
	a, b := uuid.New(), uuid.New()
	return "0x" + hex.EncodeToString(a[:]) + hex.EncodeToString(b[:])
}
