// Package boltagent builds the bolt_agent metadata HELLO sends on Bolt >=
// 5.3, identifying this driver and its runtime to the server.
package boltagent

import (
	"fmt"
	"runtime"
)

const driverVersion = "1.0.0"

var (
	goos     = runtime.GOOS
	goarch   = runtime.GOARCH
	goVerStr = runtime.Version()
)

// Agent holds the immutable, preformatted fields sent as hello["bolt_agent"].
type Agent struct {
	product  string
	platform string
	language string
}

// New returns the Agent describing this build.
func New() *Agent {
	return &Agent{
		product:  fmt.Sprintf("bolt-go-driver/%s", driverVersion),
		platform: fmt.Sprintf("%s; %s", goos, goarch),
		language: fmt.Sprintf("Go/%s", goVerStr),
	}
}

func (a *Agent) Product() string  { return a.product }
func (a *Agent) Platform() string { return a.platform }
func (a *Agent) Language() string { return a.language }

// ToMeta renders the agent as the map HELLO expects under "bolt_agent".
func (a *Agent) ToMeta() map[string]string {
	return map[string]string{
		"product":  a.product,
		"platform": a.platform,
		"language": a.language,
	}
}
