package main

import (
	"fmt"

	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
)

// buildKubernetesClients builds the clientset and dynamic client a clustered
// `run --cluster` needs: the former for leader election leases and pod
// watching, the latter for the memberlist custom resource. Always built from
// in-cluster config, matching the teacher's pkg/leader/election.go
// createKubernetesClient — chromactl only runs this path inside the cluster
// it coordinates.
func buildKubernetesClients() (kubernetes.Interface, dynamic.Interface, error) {
	config, err := rest.InClusterConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("loading in-cluster kubernetes config: %w", err)
	}
	clientset, err := kubernetes.NewForConfig(config)
	if err != nil {
		return nil, nil, fmt.Errorf("building kubernetes clientset: %w", err)
	}
	dynamicClient, err := dynamic.NewForConfig(config)
	if err != nil {
		return nil, nil, fmt.Errorf("building kubernetes dynamic client: %w", err)
	}
	return clientset, dynamicClient, nil
}
