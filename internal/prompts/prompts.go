// SPDX-License-Identifier: MIT

// Package prompts holds the scripted utterances and session instructions for
// the voice agent. Defaults are embedded; a YAML file can override them and
// may be hot-reloaded.
package prompts

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Default Latvian texts. The notice wording is a compliance requirement and
// must be spoken verbatim, exactly once per call.
const (
	DefaultNotice = "Informācijai — šis demo zvans var tikt ierakstīts un analizēts kvalitātes nolūkiem."
	DefaultIntro  = "Sveiki! Mani sauc Paula un es esmu Aivify asistente. Ar ko man ir gods runāt?"
)

// DefaultStrictInstructions keep the model silent and verbatim during the
// scripted phase.
var DefaultStrictInstructions = strings.Join([]string{
	"Speak only when explicitly instructed via response.create.",
	"Read Latvian text verbatim. Do not improvise.",
	"No persona. No small talk.",
	"Stay silent unless instructed. Do not transcribe or react to background audio.",
}, " ")

// DefaultPersonaInstructions is the conversational persona installed at
// hand-off.
const DefaultPersonaInstructions = `TU RUNĀ LATVISKI (LV) UN TIKAI LATVISKI.

Tu esi laipna, īsa un skaidra balss asistente "Paula" no Aivify.

Noteikumi:
1) Atbildes ir īsas, skaidras un draudzīgas; pārjautā, lai noskaidrotu vajadzību.
2) GDPR paziņojums jau ir nolasīts sarunas sākumā. Nesaki to vēlreiz.
3) Ja zvanītājs pāriet uz citu valodu, tu tik un tā atbildi LATVISKI.
4) Ja nekas nav saprotams, palūdz īsi pārfrāzēt.
5) Nelieto rupjības, nesniedz juridiskas vai medicīniskas konsultācijas.

Stils: īsi teikumi, dabisks temps, pozitīva intonācija.
Ja atbilde ir "jā/nē", pievieno vienu īsu skaidrojuma teikumu.

Mērķis šobrīd: tikai saruna; neveic rezervācijas. Ja zvanītājs vēlas laiku vai
rezervāciju, atbildi, ka pašlaik veicam tikai demonstrāciju.`

// Prompts is one immutable snapshot of all texts.
type Prompts struct {
	Notice              string `yaml:"notice"`
	Intro               string `yaml:"intro"`
	StrictInstructions  string `yaml:"strictInstructions"`
	PersonaInstructions string `yaml:"personaInstructions"`
}

// Defaults returns the embedded texts.
func Defaults() Prompts {
	return Prompts{
		Notice:              DefaultNotice,
		Intro:               DefaultIntro,
		StrictInstructions:  DefaultStrictInstructions,
		PersonaInstructions: DefaultPersonaInstructions,
	}
}

// Validate rejects snapshots that would break the scripted phase.
func (p Prompts) Validate() error {
	if strings.TrimSpace(p.Notice) == "" {
		return fmt.Errorf("notice text must not be empty")
	}
	if strings.TrimSpace(p.Intro) == "" {
		return fmt.Errorf("intro text must not be empty")
	}
	if strings.TrimSpace(p.StrictInstructions) == "" {
		return fmt.Errorf("strict instructions must not be empty")
	}
	if strings.TrimSpace(p.PersonaInstructions) == "" {
		return fmt.Errorf("persona instructions must not be empty")
	}
	return nil
}

// Store provides thread-safe access to the current prompts snapshot.
type Store struct {
	mu      sync.RWMutex
	current Prompts
}

// NewStore creates a store seeded with the embedded defaults.
func NewStore() *Store {
	return &Store{current: Defaults()}
}

// Current returns the active snapshot.
func (s *Store) Current() Prompts {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Replace atomically swaps the snapshot after validation.
func (s *Store) Replace(p Prompts) error {
	if err := p.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	s.current = p
	s.mu.Unlock()
	return nil
}

// LoadFile overlays a YAML prompts file onto the defaults and installs the
// result. Empty fields in the file keep their default text.
func (s *Store) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read prompts file: %w", err)
	}

	p := Defaults()
	if err := yaml.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("parse prompts file: %w", err)
	}
	// Unmarshal may blank fields that are present but empty in the file.
	def := Defaults()
	if strings.TrimSpace(p.Notice) == "" {
		p.Notice = def.Notice
	}
	if strings.TrimSpace(p.Intro) == "" {
		p.Intro = def.Intro
	}
	if strings.TrimSpace(p.StrictInstructions) == "" {
		p.StrictInstructions = def.StrictInstructions
	}
	if strings.TrimSpace(p.PersonaInstructions) == "" {
		p.PersonaInstructions = def.PersonaInstructions
	}

	return s.Replace(p)
}
