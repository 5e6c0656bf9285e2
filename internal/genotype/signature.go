package genotype

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"strings"

	"cnnevo/internal/gene"
)

// Signature renders the chain structure, e.g.
// in(32x32x3)|c2d(5x5/1x1,16)|p2d(2x2/2x2)|fc(64).
// Activations and IDs are not part of it.
func Signature(g Genotype) string {
	parts := make([]string, 0, len(g.Genes))
	for _, gn := range g.Genes {
		parts = append(parts, geneToken(gn))
	}
	return strings.Join(parts, "|")
}

// Fingerprint is a short digest of Signature, used to spot duplicate
// architectures.
func Fingerprint(g Genotype) string {
	digest := sha1.Sum([]byte(Signature(g)))
	return hex.EncodeToString(digest[:8])
}

func geneToken(g gene.Gene) string {
	switch v := g.(type) {
	case *gene.Input:
		dim, _ := v.Dimension()
		return fmt.Sprintf("in(%s)", dim)
	case *gene.Conv1D:
		return fmt.Sprintf("c1d(%d/%d,%d)", v.Kernel, v.Stride, v.Kernels)
	case *gene.Conv2D:
		return fmt.Sprintf("c2d(%dx%d/%dx%d,%d)", v.Kernel[0], v.Kernel[1], v.Stride[0], v.Stride[1], v.Kernels)
	case *gene.Pool1D:
		return fmt.Sprintf("p1d(%d/%d)", v.Size, v.Stride)
	case *gene.Pool2D:
		return fmt.Sprintf("p2d(%dx%d/%dx%d)", v.Size[0], v.Size[1], v.Stride[0], v.Stride[1])
	case *gene.FullyConnected:
		return fmt.Sprintf("fc(%d)", v.Units)
	default:
		return "?"
	}
}
