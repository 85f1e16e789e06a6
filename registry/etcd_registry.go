package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"
)

// DefaultPrefix is the etcd key prefix used when none is configured.
const DefaultPrefix = "/yoroi"

// Instance is the value stored in etcd for one endpoint of one service.
type Instance struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Endpoint string `json:"endpoint"`
}

// EtcdRegistry announces and reads service instances in etcd.
//
// etcd is used as a startup source of registrations, not as a live discovery bus:
//
//	Key:   {prefix}/{ServiceID}/{Endpoint}
//	Value: JSON-encoded Instance
//
// A collaborator announces itself with a TTL lease (the entry disappears when the process
// dies), and the gateway copies whatever is present into its in-memory ServiceRegistry once,
// when it starts. Nothing is watched afterwards.
type EtcdRegistry struct {
	client *clientv3.Client // thread-safe, shared across goroutines
	prefix string
}

// NewEtcdRegistry connects to the given etcd endpoints.
func NewEtcdRegistry(endpoints []string, prefix string, dialTimeout time.Duration) (*EtcdRegistry, error) {
	c, err := clientv3.New(clientv3.Config{
		Endpoints:   endpoints,
		DialTimeout: dialTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("connect etcd: %w", err)
	}
	return NewEtcdRegistryFromClient(c, prefix), nil
}

// NewEtcdRegistryFromClient wraps an existing client.
func NewEtcdRegistryFromClient(c *clientv3.Client, prefix string) *EtcdRegistry {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &EtcdRegistry{client: c, prefix: strings.TrimSuffix(prefix, "/")}
}

// Close releases the etcd client.
func (r *EtcdRegistry) Close() error {
	return r.client.Close()
}

// Announce writes inst under a TTL lease and keeps the lease alive until ctx is done.
//
// The lease ID stays local so that several announcements can share one EtcdRegistry.
func (r *EtcdRegistry) Announce(ctx context.Context, inst Instance, ttl int64) error {
	lease, err := r.client.Grant(ctx, ttl)
	if err != nil {
		return fmt.Errorf("grant lease: %w", err)
	}

	val, err := json.Marshal(inst)
	if err != nil {
		return err
	}

	if _, err := r.client.Put(ctx, r.key(inst.ID, inst.Endpoint), string(val), clientv3.WithLease(lease.ID)); err != nil {
		return fmt.Errorf("put %s: %w", inst.ID, err)
	}

	ch, err := r.client.KeepAlive(ctx, lease.ID)
	if err != nil {
		return fmt.Errorf("keepalive %s: %w", inst.ID, err)
	}

	// Drain keepalive responses so the channel never fills up.
	go func() {
		for range ch {
		}
	}()
	return nil
}

// Withdraw deletes one announced endpoint.
func (r *EtcdRegistry) Withdraw(ctx context.Context, id, endpoint string) error {
	if _, err := r.client.Delete(ctx, r.key(id, endpoint)); err != nil {
		return fmt.Errorf("delete %s: %w", id, err)
	}
	return nil
}

// Discover returns every instance currently stored for id.
func (r *EtcdRegistry) Discover(ctx context.Context, id string) ([]Instance, error) {
	return r.list(ctx, r.prefix+"/"+id+"/")
}

// Seed copies every announced instance into reg and returns how many were applied.
// Malformed entries are skipped.
func (r *EtcdRegistry) Seed(ctx context.Context, reg Registry) (int, error) {
	instances, err := r.list(ctx, r.prefix+"/")
	if err != nil {
		return 0, err
	}
	for _, inst := range instances {
		reg.Register(inst.ID, inst.Name, []string{inst.Endpoint})
	}
	return len(instances), nil
}

func (r *EtcdRegistry) list(ctx context.Context, prefix string) ([]Instance, error) {
	resp, err := r.client.Get(ctx, prefix, clientv3.WithPrefix())
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", prefix, err)
	}

	instances := make([]Instance, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		inst, ok := decodeInstance(r.prefix, string(kv.Key), kv.Value)
		if !ok {
			continue
		}
		instances = append(instances, inst)
	}
	return instances, nil
}

func (r *EtcdRegistry) key(id, endpoint string) string {
	return r.prefix + "/" + id + "/" + endpoint
}

// decodeInstance parses one etcd entry. The key wins over the JSON body for id and
// endpoint, the body only contributes the display name.
func decodeInstance(prefix, key string, value []byte) (Instance, bool) {
	rest, ok := strings.CutPrefix(key, prefix+"/")
	if !ok {
		return Instance{}, false
	}
	id, endpoint, ok := strings.Cut(rest, "/")
	if !ok || endpoint == "" {
		return Instance{}, false
	}

	var inst Instance
	if err := json.Unmarshal(value, &inst); err != nil {
		return Instance{}, false
	}
	inst.ID = id
	inst.Endpoint = endpoint
	return inst, true
}
