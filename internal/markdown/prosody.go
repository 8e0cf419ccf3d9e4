package markdown

import "github.com/vaanilabs/vaachak/internal/config"

// ProsodyFromConfig builds the chunk treatment table from the prosody config
// section. Zero values fall back to the shipped defaults per field.
func ProsodyFromConfig(cfg config.ProsodyConfig) ProsodyTable {
	t := DefaultProsody()
	set := func(kind ChunkKind, pauseMS int, loudness float64) {
		p := t[kind]
		if pauseMS > 0 {
			p.PauseMS = pauseMS
		}
		if loudness > 0 {
			p.Loudness = loudness
		}
		t[kind] = p
	}
	set(KindHeading1, cfg.PauseAfterH1MS, cfg.H1LoudnessBoost)
	set(KindHeading2, cfg.PauseAfterH2MS, cfg.H2LoudnessBoost)
	set(KindHeading3, cfg.PauseAfterH3MS, cfg.H3LoudnessBoost)
	set(KindParagraph, cfg.PauseAfterParagraphMS, 0)
	set(KindBullet, cfg.PauseAfterBulletMS, 0)
	return t
}
