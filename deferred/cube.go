package deferred

import (
	"embed"

	"github.com/cockroachdb/errors"
	"github.com/g3n/engine/loader/obj"
	"github.com/go-gl/mathgl/mgl32"
)

//go:embed meshes
var meshes embed.FS

// CubeGridSize is the side of the square grid of cubes drawn in the
// G-buffer pass. The vertex shader places each instance from its
// instance index.
const CubeGridSize = 7

// CubeInstances is the number of cubes in the grid.
const CubeInstances = CubeGridSize * CubeGridSize

// Vertex is the per-vertex layout shared by both pipelines.
type Vertex struct {
	Position mgl32.Vec3
	UV       mgl32.Vec2
}

type vertexKey struct {
	position int
	uv       int
}

// LoadCube decodes the textured cube mesh and returns its vertices
// and a triangle list of indices into them.
func LoadCube() ([]Vertex, []uint32, error) {
	meshFile, err := meshes.Open("meshes/cube.obj")
	if err != nil {
		return nil, nil, errors.Wrap(err, "open cube mesh")
	}
	defer meshFile.Close()

	matFile, err := meshes.Open("meshes/cube.mtl")
	if err != nil {
		return nil, nil, errors.Wrap(err, "open cube material")
	}
	defer matFile.Close()

	decoder, err := obj.DecodeReader(meshFile, matFile)
	if err != nil {
		return nil, nil, errors.Wrap(err, "decode cube mesh")
	}

	var vertices []Vertex
	var indices []uint32
	unique := make(map[vertexKey]uint32)

	addVertex := func(face obj.Face, i int) error {
		if i >= len(face.Uvs) {
			return errors.Newf("cube mesh: face vertex %d has no texture coordinates", i)
		}
		key := vertexKey{position: face.Vertices[i], uv: face.Uvs[i]}
		index, ok := unique[key]
		if !ok {
			v := Vertex{
				Position: mgl32.Vec3{
					decoder.Vertices[key.position*3],
					decoder.Vertices[key.position*3+1],
					decoder.Vertices[key.position*3+2],
				},
				UV: mgl32.Vec2{
					decoder.Uvs[key.uv*2],
					1.0 - decoder.Uvs[key.uv*2+1],
				},
			}
			index = uint32(len(vertices))
			vertices = append(vertices, v)
			unique[key] = index
		}
		indices = append(indices, index)
		return nil
	}

	for _, object := range decoder.Objects {
		for _, face := range object.Faces {
			// Faces may be polygons; split them into a triangle fan.
			for i := 2; i < len(face.Vertices); i++ {
				for _, corner := range []int{0, i - 1, i} {
					if err := addVertex(face, corner); err != nil {
						return nil, nil, err
					}
				}
			}
		}
	}

	if len(indices) == 0 {
		return nil, nil, errors.New("cube mesh has no faces")
	}
	return vertices, indices, nil
}
