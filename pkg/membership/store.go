package membership

import (
	"context"
	"errors"
	"fmt"

	"github.com/pingcap/log"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/client-go/dynamic"
)

// Role distinguishes the two worker pools spec.md §4.5 routes independently:
// query executors (SSD-cache affinity) and compactors (lease affinity).
type Role string

const (
	RoleQuery     Role = "query"
	RoleCompactor Role = "compactor"
)

// Worker is one entry of a memberlist: a routable pool member.
type Worker struct {
	ID   string
	IP   string
	Node string
}

// MarshalLogObject implements zapcore.ObjectMarshaler for structured logging.
func (w Worker) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("id", w.ID)
	enc.AddString("ip", w.IP)
	enc.AddString("node", w.Node)
	return nil
}

type Memberlist []Worker

func (m Memberlist) Len() int           { return len(m) }
func (m Memberlist) Swap(i, j int)      { m[i], m[j] = m[j], m[i] }
func (m Memberlist) Less(i, j int) bool { return m[i].ID < m[j].ID }

func (m Memberlist) MarshalLogArray(enc zapcore.ArrayEncoder) error {
	for _, w := range m {
		if err := enc.AppendObject(w); err != nil {
			return err
		}
	}
	return nil
}

func (m Memberlist) ids() []string {
	ids := make([]string, len(m))
	for i, w := range m {
		ids[i] = w.ID
	}
	return ids
}

// sameMembers reports whether two memberlists contain the same worker IDs,
// ignoring order — used to skip a no-op CR write on reconcile.
func sameMembers(a, b Memberlist) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[string]bool, len(b))
	for _, w := range b {
		seen[w.ID] = true
	}
	for _, w := range a {
		if !seen[w.ID] {
			return false
		}
	}
	return true
}

// Store persists the reconciled memberlist for one role so every node's
// Router can read a consistent view without re-watching pods itself.
type Store interface {
	Get(ctx context.Context, role Role) (list Memberlist, resourceVersion string, err error)
	Update(ctx context.Context, role Role, list Memberlist, resourceVersion string) error
}

// CRStore is a Store backed by a Kubernetes custom resource, one CR per
// role, matching the teacher's memberlist_store.go CRMemberlistStore.
type CRStore struct {
	dynamicClient dynamic.Interface
	namespace     string
}

func NewCRStore(dynamicClient dynamic.Interface, namespace string) *CRStore {
	return &CRStore{dynamicClient: dynamicClient, namespace: namespace}
}

var gvr = schema.GroupVersionResource{Group: "chroma.cluster", Version: "v1", Resource: "memberlists"}

func (s *CRStore) crName(role Role) string {
	return fmt.Sprintf("%s-memberlist", role)
}

func (s *CRStore) Get(ctx context.Context, role Role) (Memberlist, string, error) {
	obj, err := s.dynamicClient.Resource(gvr).Namespace(s.namespace).Get(ctx, s.crName(role), metav1.GetOptions{})
	if err != nil {
		return nil, "", err
	}
	content := obj.UnstructuredContent()
	spec, ok := content["spec"].(map[string]interface{})
	if !ok {
		return nil, "", errors.New("membership: malformed memberlist CR, missing spec")
	}
	rawMembers := spec["members"]
	if rawMembers == nil {
		log.Debug("memberlist CR has no members, returning empty", zap.String("role", string(role)))
		return nil, obj.GetResourceVersion(), nil
	}
	castMembers, ok := rawMembers.([]interface{})
	if !ok {
		return nil, "", errors.New("membership: malformed memberlist CR, members is not a list")
	}
	list := make(Memberlist, 0, len(castMembers))
	for _, m := range castMembers {
		entry, ok := m.(map[string]interface{})
		if !ok {
			return nil, "", errors.New("membership: malformed memberlist CR member entry")
		}
		id, ok := entry["worker_id"].(string)
		if !ok {
			return nil, "", errors.New("membership: malformed memberlist CR member, missing worker_id")
		}
		ip, _ := entry["worker_ip"].(string)
		node, _ := entry["worker_node"].(string)
		list = append(list, Worker{ID: id, IP: ip, Node: node})
	}
	return list, obj.GetResourceVersion(), nil
}

func (s *CRStore) Update(ctx context.Context, role Role, list Memberlist, resourceVersion string) error {
	log.Debug("updating memberlist store", zap.String("role", string(role)), zap.Array("members", list))
	obj := list.toUnstructured(s.namespace, s.crName(role), resourceVersion)
	_, err := s.dynamicClient.Resource(gvr).Namespace(s.namespace).Update(ctx, obj, metav1.UpdateOptions{})
	return err
}

func (list Memberlist) toUnstructured(namespace, name, resourceVersion string) *unstructured.Unstructured {
	members := make([]interface{}, len(list))
	for i, w := range list {
		members[i] = map[string]interface{}{
			"worker_id":   w.ID,
			"worker_ip":   w.IP,
			"worker_node": w.Node,
		}
	}
	return &unstructured.Unstructured{
		Object: map[string]interface{}{
			"apiVersion": "chroma.cluster/v1",
			"kind":       "MemberList",
			"metadata": map[string]interface{}{
				"name":            name,
				"namespace":       namespace,
				"resourceVersion": resourceVersion,
			},
			"spec": map[string]interface{}{
				"members": members,
			},
		},
	}
}
