package maze

import (
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/vaultmaze-project/vaultmaze/internal/honeytoken"
)

// LayerCount is fixed: seven ordered defensive rings in front of the vault.
const LayerCount = 7

// MazeLayer is one defensive ring. Layer 0 is the outermost; layer 6 sits
// directly in front of the vault. Complexity and trap sophistication grow
// monotonically with depth by construction.
type MazeLayer struct {
	ID              string                         `json:"id"`
	Number          int                            `json:"number"`
	Name            string                         `json:"name"`
	Algorithm       string                         `json:"algorithm"`
	Complexity      int                            `json:"complexity"`
	KeyRotation     time.Duration                  `json:"key_rotation"`
	HoneypotDensity float64                        `json:"honeypot_density"`
	TrapComplexity  float64                        `json:"trap_complexity"`
	Honeypots       []*honeytoken.HoneypotPosition `json:"honeypots"`
	Traps           []*honeytoken.TrapPosition     `json:"traps"`
	AccessCount     int64                          `json:"access_count"`
	LastAccessed    time.Time                      `json:"last_accessed"`
	CreatedAt       time.Time                      `json:"created_at"`
}

var layerNames = [LayerCount]string{
	"Muladhara", "Svadhisthana", "Manipura", "Anahata", "Vishuddha", "Ajna", "Sahasrara",
}

var layerAlgorithms = [LayerCount]string{
	"AES-256-GCM", "ChaCha20-Poly1305", "Twofish", "Serpent", "Camellia", "AES-256-GCM", "Twofish",
}

// buildLayer constructs layer n with fresh honeypots and traps. Depth drives
// everything: deeper layers rotate keys faster, carry fewer but nastier
// honeypots, and more sophisticated traps.
func buildLayer(n int, tokens *honeytoken.Service) *MazeLayer {
	density := math.Max(0.1, 0.9-0.1*float64(n))
	trapComplexity := math.Min(10, 2+1.2*float64(n))

	potCount := int(math.Round(density * 10))
	if potCount < 1 {
		potCount = 1
	}
	trapCount := int(trapComplexity)

	return &MazeLayer{
		ID:              uuid.New().String(),
		Number:          n,
		Name:            layerNames[n],
		Algorithm:       layerAlgorithms[n],
		Complexity:      3 + n,
		KeyRotation:     5*time.Minute - 30*time.Second*time.Duration(n),
		HoneypotDensity: density,
		TrapComplexity:  trapComplexity,
		Honeypots:       tokens.GenerateHoneypots(n, potCount),
		Traps:           tokens.GenerateTraps(n, trapCount),
		CreatedAt:       time.Now().UTC(),
	}
}

// buildLayers constructs the full seven-ring maze.
func buildLayers(tokens *honeytoken.Service) []*MazeLayer {
	layers := make([]*MazeLayer, LayerCount)
	for n := 0; n < LayerCount; n++ {
		layers[n] = buildLayer(n, tokens)
	}
	return layers
}
