package config

// Version constants for speechd configuration manifests.
const (
	// APIVersion is the Kubernetes-style API version of speechd configs.
	APIVersion = "speechd.fia.dev/v1alpha1"

	// Kind is the only manifest kind speechd reads.
	Kind = "SpeechConfig"
)
