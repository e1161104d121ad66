package pointcloud

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/chenzhekl/goply"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	goutils "go.viam.com/utils"

	"github.com/kdlab/kdextract/utils"
)

const plyHeaderFormat = "ply\n" +
	"format ascii 1.0\n" +
	"element vertex %d\n" +
	"property float x\n" +
	"property float y\n" +
	"property float z\n" +
	"end_header\n"

// ErrPLYCountMismatch is returned when the vertex lines of a PLY file disagree with its header.
var ErrPLYCountMismatch = errors.New("ply vertex count does not match header")

// WritePLY writes the valid points of cloud as an ASCII PLY file with float32 coordinates.
func WritePLY(out io.Writer, cloud PointCloud) error {
	expected := cloud.Size()
	if _, err := fmt.Fprintf(out, plyHeaderFormat, expected); err != nil {
		return err
	}

	written := 0
	var err error
	line := make([]byte, 0, 64)
	cloud.Iterate(func(p r3.Vector) bool {
		line = appendPLYFloat(line[:0], p.X)
		line = append(line, ' ')
		line = appendPLYFloat(line, p.Y)
		line = append(line, ' ')
		line = appendPLYFloat(line, p.Z)
		line = append(line, '\n')
		if _, err = out.Write(line); err != nil {
			return false
		}
		written++
		return true
	})
	if err != nil {
		return err
	}
	if written != expected {
		return errors.Wrapf(ErrPLYCountMismatch, "header says %d, wrote %d", expected, written)
	}
	return nil
}

func appendPLYFloat(dst []byte, v float64) []byte {
	return strconv.AppendFloat(dst, float64(float32(v)), 'g', -1, 32)
}

// WritePLYFile writes cloud to path. The file only appears once it is completely written.
func WritePLYFile(path string, cloud PointCloud) error {
	if err := utils.WriteFileAtomic(path, func(w io.Writer) error {
		return WritePLY(w, cloud)
	}); err != nil {
		return errors.Wrapf(err, "cannot write point cloud %q", path)
	}
	return nil
}

// ReadPLY parses an ASCII PLY file with a single x y z float vertex element. The vertex lines must
// agree with the header's count.
func ReadPLY(inRaw io.Reader) (Basic, error) {
	raw, err := io.ReadAll(inRaw)
	if err != nil {
		return nil, errors.Wrap(err, "cannot read ply")
	}
	lines := strings.Split(string(raw), "\n")
	header, vertexCount, err := readPLYHeader(lines)
	if err != nil {
		return nil, err
	}

	body := make([]string, 0, vertexCount)
	for _, line := range lines[len(header):] {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if fields := len(strings.Fields(line)); fields != 3 {
			return nil, errors.Errorf("vertex %d has %d fields, expected 3", len(body), fields)
		}
		body = append(body, line)
	}
	if len(body) != vertexCount {
		return nil, errors.Wrapf(ErrPLYCountMismatch, "header says %d, found %d", vertexCount, len(body))
	}

	var text strings.Builder
	for _, line := range header {
		if line = strings.TrimSpace(line); line != "" {
			text.WriteString(line + "\n")
		}
	}
	text.WriteString(strings.Join(body, "\n"))
	return parsePLYVertices(text.String(), vertexCount)
}

// readPLYHeader returns the header lines, end_header included, and the declared vertex count.
func readPLYHeader(lines []string) ([]string, int, error) {
	if strings.TrimSpace(lines[0]) != "ply" {
		return nil, 0, errors.New("missing ply magic number")
	}
	vertexCount := -1
	var properties []string
	for i := 1; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])
		if line == "" || strings.HasPrefix(line, "comment") {
			continue
		}
		if line == "end_header" {
			if vertexCount < 0 {
				return nil, 0, errors.New("ply header has no vertex element")
			}
			if strings.Join(properties, " ") != "x y z" {
				return nil, 0, errors.Errorf("expected float properties x y z, got %q", strings.Join(properties, " "))
			}
			return lines[:i+1], vertexCount, nil
		}
		tokens := strings.Fields(line)
		switch tokens[0] {
		case "format":
			if len(tokens) != 3 || tokens[1] != "ascii" {
				return nil, 0, errors.Errorf("unsupported ply format %q", line)
			}
		case "element":
			if len(tokens) != 3 || tokens[1] != "vertex" || vertexCount >= 0 {
				return nil, 0, errors.Errorf("unsupported ply element %q", line)
			}
			count, err := strconv.Atoi(tokens[2])
			if err != nil || count < 0 {
				return nil, 0, errors.Errorf("invalid vertex count %q", tokens[2])
			}
			vertexCount = count
		case "property":
			if len(tokens) != 3 || tokens[1] != "float" {
				return nil, 0, errors.Errorf("unsupported ply property %q", line)
			}
			properties = append(properties, tokens[2])
		default:
			return nil, 0, errors.Errorf("unexpected ply header line %q", line)
		}
	}
	return nil, 0, errors.New("ply header has no end_header")
}

// parsePLYVertices decodes a checked PLY text. goply reports malformed values by panicking.
func parsePLYVertices(text string, vertexCount int) (points Basic, err error) {
	defer func() {
		if r := recover(); r != nil {
			points, err = nil, errors.Errorf("malformed ply: %v", r)
		}
	}()
	vertices := goply.New(strings.NewReader(text)).Elements("vertex")
	if len(vertices) != vertexCount {
		return nil, errors.Wrapf(ErrPLYCountMismatch, "header says %d, parsed %d", vertexCount, len(vertices))
	}
	points = make(Basic, 0, len(vertices))
	for i, v := range vertices {
		x, okX := v.Property("x").(float32)
		y, okY := v.Property("y").(float32)
		z, okZ := v.Property("z").(float32)
		if !okX || !okY || !okZ {
			return nil, errors.Errorf("vertex %d is not three floats", i)
		}
		points = append(points, r3.Vector{X: float64(x), Y: float64(y), Z: float64(z)})
	}
	return points, nil
}

// ReadPLYFile reads the PLY file at path.
func ReadPLYFile(path string) (Basic, error) {
	//nolint:gosec
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer goutils.UncheckedErrorFunc(f.Close)
	points, err := ReadPLY(f)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot read %q", path)
	}
	return points, nil
}
