package leader

import (
	"github.com/google/wire"
	"k8s.io/client-go/rest"

	"github.com/kubeflume/kubeflume-agent/internal/config"
)

// ProvideElector builds the elector from configuration, reusing the
// cluster rest config of the kubernetes provider.
func ProvideElector(conf *config.Config, restCfg *rest.Config) (*Elector, error) {
	return NewElector(Config{
		Namespace: conf.AgentLeaderElectionNamespace(),
		LeaseName: conf.AgentLeaderElectionLeaseName(),
	}, restCfg)
}

var ProviderSet = wire.NewSet(ProvideElector)
