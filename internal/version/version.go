// 包 version：构建信息，通过 -ldflags "-X sverigekartan/internal/version.Commit=..." 注入
package version

var (
	Version = "dev"
	Commit  = "unknown"
)
