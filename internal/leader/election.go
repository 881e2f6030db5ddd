// Package leader runs Kubernetes Lease-based leader election so that
// only one agent replica streams watches at a time.
package leader

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync/atomic"
	"time"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	coordinationv1 "k8s.io/client-go/kubernetes/typed/coordination/v1"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/leaderelection"
	"k8s.io/client-go/tools/leaderelection/resourcelock"
)

// Elector runs Kubernetes Lease leader election. Gates watch sessions
// when the agent runs with more than one replica.
type Elector struct {
	namespace string
	leaseName string
	identity  string

	leaseDuration time.Duration
	renewDeadline time.Duration
	retryPeriod   time.Duration

	isLeader atomic.Bool

	coordClient coordinationv1.CoordinationV1Interface
}

type Config struct {
	// Namespace where the Lease object lives. If empty, it will be detected.
	Namespace string
	// LeaseName is the name of the Lease object.
	LeaseName string
	// Identity is the unique identity for this participant. If empty, it will be detected.
	Identity string

	// LeaseDuration is the duration that non-leader candidates will wait to force acquire leadership.
	LeaseDuration time.Duration
	// RenewDeadline is the duration that the acting leader will retry refreshing leadership before giving up.
	RenewDeadline time.Duration
	// RetryPeriod is the duration the LeaderElector clients should wait between tries.
	RetryPeriod time.Duration
}

func NewElector(cfg Config, restCfg *rest.Config) (*Elector, error) {
	ns := cfg.Namespace
	if ns == "" {
		ns = detectNamespace()
	}
	if ns == "" {
		return nil, fmt.Errorf("unable to detect namespace; set POD_NAMESPACE or mount serviceaccount namespace")
	}

	leaseName := cfg.LeaseName
	if leaseName == "" {
		leaseName = "kubeflume-agent-leader"
	}

	identity := cfg.Identity
	if identity == "" {
		identity = detectIdentity()
	}
	if identity == "" {
		return nil, fmt.Errorf("unable to detect identity; set POD_NAME or hostname")
	}

	clientset, err := kubernetes.NewForConfig(restCfg)
	if err != nil {
		return nil, err
	}

	e := &Elector{
		namespace:     ns,
		leaseName:     leaseName,
		identity:      identity,
		leaseDuration: cfg.LeaseDuration,
		renewDeadline: cfg.RenewDeadline,
		retryPeriod:   cfg.RetryPeriod,
		coordClient:   clientset.CoordinationV1(),
	}
	if e.leaseDuration <= 0 {
		e.leaseDuration = 15 * time.Second
	}
	if e.renewDeadline <= 0 {
		e.renewDeadline = 10 * time.Second
	}
	if e.retryPeriod <= 0 {
		e.retryPeriod = 2 * time.Second
	}
	return e, nil
}

func (e *Elector) IsLeader() bool {
	return e.isLeader.Load()
}

func (e *Elector) Identity() string {
	return e.identity
}

// LeaderIdentity returns the current lease holder identity, for the
// status API. In our deployment this equals the leader pod name.
func (e *Elector) LeaderIdentity(ctx context.Context) (string, error) {
	lease, err := e.coordClient.Leases(e.namespace).Get(ctx, e.leaseName, metav1.GetOptions{})
	if err != nil {
		return "", err
	}
	if lease.Spec.HolderIdentity == nil || strings.TrimSpace(*lease.Spec.HolderIdentity) == "" {
		return "", errors.New("lease has no holder identity yet")
	}
	return strings.TrimSpace(*lease.Spec.HolderIdentity), nil
}

// Run blocks until ctx is done. It will call callbacks on leadership changes.
// The returned error is only for setup/lock creation failures.
func (e *Elector) Run(ctx context.Context, onStartedLeading func(context.Context), onStoppedLeading func()) error {
	lock := &resourcelock.LeaseLock{
		LeaseMeta: metav1.ObjectMeta{
			Name:      e.leaseName,
			Namespace: e.namespace,
		},
		Client: e.coordClient,
		LockConfig: resourcelock.ResourceLockConfig{
			Identity: e.identity,
		},
	}

	lec := leaderelection.LeaderElectionConfig{
		Lock:          lock,
		LeaseDuration: e.leaseDuration,
		RenewDeadline: e.renewDeadline,
		RetryPeriod:   e.retryPeriod,
		Callbacks: leaderelection.LeaderCallbacks{
			OnStartedLeading: func(c context.Context) {
				e.isLeader.Store(true)
				onStartedLeading(c)
			},
			OnStoppedLeading: func() {
				e.isLeader.Store(false)
				onStoppedLeading()
			},
		},
		ReleaseOnCancel: true,
		Name:            "kubeflume",
	}

	le, err := leaderelection.NewLeaderElector(lec)
	if err != nil {
		return err
	}

	le.Run(ctx) // blocks
	return nil
}

func detectNamespace() string {
	if ns := strings.TrimSpace(os.Getenv("POD_NAMESPACE")); ns != "" {
		return ns
	}
	// Standard location in Kubernetes pods
	if b, err := os.ReadFile("/var/run/secrets/kubernetes.io/serviceaccount/namespace"); err == nil {
		return strings.TrimSpace(string(b))
	}
	return ""
}

func detectIdentity() string {
	if n := strings.TrimSpace(os.Getenv("POD_NAME")); n != "" {
		return n
	}
	if h, err := os.Hostname(); err == nil && strings.TrimSpace(h) != "" {
		return strings.TrimSpace(h) + "-" + shortRandom()
	}
	return shortRandom()
}

func shortRandom() string {
	buf := make([]byte, 12)
	_, _ = rand.Read(buf) // best-effort
	return base64.RawStdEncoding.EncodeToString(buf)
}
