package source

// Mode identifies the form of Kubernetes deployment description found in a
// working directory. It is determined once per run and drives both tool
// bootstrap scope and render strategy selection.
type Mode int

const (
	// ModeUnknown means no recognized source form was found. It is terminal;
	// the run aborts before any tool bootstrap.
	ModeUnknown Mode = iota

	// ModeHelmfile is a multi-release project described by a helmfile
	// descriptor. It wins over ModeChart when both descriptors coexist,
	// since the multi-release form is the outer, authoritative one.
	ModeHelmfile

	// ModeChart is a single Helm chart.
	ModeChart

	// ModeManifests is plain, already-rendered resource YAML.
	ModeManifests
)

func (m Mode) String() string {
	switch m {
	case ModeHelmfile:
		return "helmfile"
	case ModeChart:
		return "chart"
	case ModeManifests:
		return "manifests"
	case ModeUnknown:
		return "unknown"
	}

	return "unknown"
}

// HelmfileNames lists recognized multi-release descriptor filenames, in the
// order they are tried.
var HelmfileNames = []string{"helmfile.yaml", "helmfile.yml", "helmfile.yaml.gotmpl"}

// ChartNames lists recognized chart descriptor filenames.
var ChartNames = []string{"Chart.yaml", "Chart.yml"}
