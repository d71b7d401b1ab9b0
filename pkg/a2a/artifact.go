package a2a

/*
Artifact is the output of a task. Chunks of one logical artifact share an
Index; a chunk with Append set is concatenated onto the artifact already at
that index instead of replacing it.
*/
type Artifact struct {
	Name        string         `json:"name,omitempty"`
	MimeType    string         `json:"mimeType,omitempty"`
	Description string         `json:"description,omitempty"`
	Parts       []Part         `json:"parts"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	Index       int            `json:"index"`
	Append      bool           `json:"append,omitempty"`
	LastChunk   bool           `json:"lastChunk,omitempty"`
}

func NewTextArtifact(name string, text string) Artifact {
	return Artifact{
		Name:     name,
		MimeType: "text/plain",
		Parts:    []Part{NewTextPart(text)},
	}
}

func NewFileArtifact(name string, mimeType string, data []byte) Artifact {
	return Artifact{
		Name:     name,
		MimeType: mimeType,
		Parts:    []Part{NewFilePart(name, mimeType, data)},
	}
}

func (artifact Artifact) Clone() Artifact {
	out := artifact
	out.Parts = cloneParts(artifact.Parts)
	out.Metadata = cloneMap(artifact.Metadata)
	return out
}

/*
merge folds an appended chunk into the artifact: parts are concatenated,
LastChunk follows the chunk, descriptive fields and metadata keys from the
chunk win when set.
*/
func (artifact *Artifact) merge(chunk Artifact) {
	artifact.Parts = append(artifact.Parts, cloneParts(chunk.Parts)...)
	artifact.LastChunk = chunk.LastChunk

	if chunk.Name != "" {
		artifact.Name = chunk.Name
	}

	if chunk.MimeType != "" {
		artifact.MimeType = chunk.MimeType
	}

	if chunk.Description != "" {
		artifact.Description = chunk.Description
	}

	if len(chunk.Metadata) > 0 {
		if artifact.Metadata == nil {
			artifact.Metadata = make(map[string]any, len(chunk.Metadata))
		}

		for k, v := range cloneMap(chunk.Metadata) {
			artifact.Metadata[k] = v
		}
	}
}

func cloneArtifacts(artifacts []Artifact) []Artifact {
	if artifacts == nil {
		return nil
	}

	out := make([]Artifact, len(artifacts))

	for i, artifact := range artifacts {
		out[i] = artifact.Clone()
	}

	return out
}
