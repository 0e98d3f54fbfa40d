package membership

import (
	"errors"
	"sync"
	"time"

	"github.com/chroma-core/controlplane/pkg/common"
	"github.com/pingcap/log"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/labels"
	"k8s.io/client-go/informers"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/tools/cache"
)

// RoleLabel is the pod label distinguishing query executors from
// compactors, mirroring the teacher's node_watcher.go MemberLabel convention.
const RoleLabel = "chroma.cluster/worker-role"

type PodEventCallback func(podIP string)

// Watcher observes one role's pod roster and notifies on any membership
// change; ready-state is tracked internally so ListReady can answer
// synchronously between events.
type Watcher interface {
	common.Component
	RegisterCallback(cb PodEventCallback)
	ListReady() []Worker
}

type KubernetesWatcher struct {
	mu        sync.Mutex
	stopCh    chan struct{}
	isRunning bool
	informer  cache.SharedIndexInformer
	callbacks []PodEventCallback
	ready     map[string]Worker // pod ip -> Worker
}

// NewKubernetesWatcher watches pods labeled RoleLabel=role in namespace,
// matching the teacher's KubernetesWatcher constructor shape but scoped to a
// single role's label value instead of an arbitrary pod_label string.
func NewKubernetesWatcher(clientset kubernetes.Interface, namespace string, role Role, resync time.Duration) *KubernetesWatcher {
	selector := labels.SelectorFromSet(map[string]string{RoleLabel: string(role)})
	factory := informers.NewSharedInformerFactoryWithOptions(
		clientset, resync,
		informers.WithNamespace(namespace),
		informers.WithTweakListOptions(func(opts *metav1.ListOptions) { opts.LabelSelector = selector.String() }),
	)
	return &KubernetesWatcher{
		informer: factory.Core().V1().Pods().Informer(),
		ready:    make(map[string]Worker),
	}
}

func (w *KubernetesWatcher) RegisterCallback(cb PodEventCallback) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.callbacks = append(w.callbacks, cb)
}

func (w *KubernetesWatcher) ListReady() []Worker {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]Worker, 0, len(w.ready))
	for _, worker := range w.ready {
		out = append(out, worker)
	}
	return out
}

func (w *KubernetesWatcher) notify(podIP string) {
	w.mu.Lock()
	callbacks := append([]PodEventCallback(nil), w.callbacks...)
	w.mu.Unlock()
	for _, cb := range callbacks {
		cb(podIP)
	}
}

func (w *KubernetesWatcher) upsert(obj interface{}) {
	pod, ok := obj.(*corev1.Pod)
	if !ok || pod.Status.PodIP == "" {
		return
	}
	ready := false
	for _, cond := range pod.Status.Conditions {
		if cond.Type == corev1.PodReady && cond.Status == corev1.ConditionTrue {
			ready = true
		}
	}
	w.mu.Lock()
	if ready {
		w.ready[pod.Status.PodIP] = Worker{ID: string(pod.UID), IP: pod.Status.PodIP, Node: pod.Spec.NodeName}
	} else {
		delete(w.ready, pod.Status.PodIP)
	}
	w.mu.Unlock()
	w.notify(pod.Status.PodIP)
}

func (w *KubernetesWatcher) remove(obj interface{}) {
	pod, ok := obj.(*corev1.Pod)
	if !ok {
		return
	}
	w.mu.Lock()
	delete(w.ready, pod.Status.PodIP)
	w.mu.Unlock()
	w.notify(pod.Status.PodIP)
}

func (w *KubernetesWatcher) Start() error {
	w.mu.Lock()
	if w.isRunning {
		w.mu.Unlock()
		return errors.New("membership: watcher already running")
	}
	w.isRunning = true
	w.mu.Unlock()

	_, err := w.informer.AddEventHandler(cache.ResourceEventHandlerFuncs{
		AddFunc:    w.upsert,
		UpdateFunc: func(_, newObj interface{}) { w.upsert(newObj) },
		DeleteFunc: w.remove,
	})
	if err != nil {
		return err
	}

	w.stopCh = make(chan struct{})
	go w.informer.Run(w.stopCh)
	if !cache.WaitForCacheSync(w.stopCh, w.informer.HasSynced) {
		log.Error("membership: failed to sync pod informer cache")
	}
	return nil
}

func (w *KubernetesWatcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.isRunning {
		return errors.New("membership: watcher is not running")
	}
	close(w.stopCh)
	w.isRunning = false
	return nil
}

var _ Watcher = (*KubernetesWatcher)(nil)
