package provider

import "github.com/mrgoonie/claudekit-cli-sub009/internal/kit"

func perFile(project, global, ext string) Target {
	return Target{ProjectPath: project, GlobalPath: global, WriteStrategy: PerFile, FileExtension: ext}
}

func singleFile(project, global string) Target {
	return Target{ProjectPath: project, GlobalPath: global, WriteStrategy: SingleFile, FileExtension: ".md"}
}

func mergeSingle(project, global string) Target {
	return Target{ProjectPath: project, GlobalPath: global, WriteStrategy: MergeSingle, FileExtension: ".md"}
}

func builtin() map[string]Provider {
	list := []Provider{
		{
			Name: "claude", DisplayName: "Claude Code",
			ProjectDir: ".claude", GlobalDir: ".claude",
			Targets: map[kit.Type]Target{
				kit.TypeAgent:   perFile("{dir}/agents/{name}.md", "{dir}/agents/{name}.md", ".md"),
				kit.TypeCommand: perFile("{dir}/commands/{name}.md", "{dir}/commands/{name}.md", ".md"),
				kit.TypeSkill:   perFile("{dir}/skills/{name}/SKILL.md", "{dir}/skills/{name}/SKILL.md", ".md"),
				kit.TypeConfig:  singleFile("CLAUDE.md", "{dir}/CLAUDE.md"),
				kit.TypeRules:   perFile("{dir}/rules/{name}.md", "{dir}/rules/{name}.md", ".md"),
				kit.TypeHooks:   perFile("{dir}/hooks/{name}", "{dir}/hooks/{name}", ""),
			},
		},
		{
			Name: "codex", DisplayName: "OpenAI Codex",
			ProjectDir: ".codex", GlobalDir: ".codex",
			Targets: map[kit.Type]Target{
				kit.TypeAgent:   mergeSingle("AGENTS.md", "{dir}/AGENTS.md"),
				kit.TypeCommand: perFile("", "{dir}/prompts/{name}.md", ".md"),
				kit.TypeSkill:   perFile("{dir}/skills/{name}/SKILL.md", "{dir}/skills/{name}/SKILL.md", ".md"),
			},
		},
		{
			Name: "gemini", DisplayName: "Gemini CLI",
			ProjectDir: ".gemini", GlobalDir: ".gemini",
			Targets: map[kit.Type]Target{
				kit.TypeCommand: perFile("{dir}/commands/{name}.toml", "{dir}/commands/{name}.toml", ".toml"),
				kit.TypeSkill:   perFile("{dir}/skills/{name}/SKILL.md", "{dir}/skills/{name}/SKILL.md", ".md"),
				kit.TypeConfig:  singleFile("GEMINI.md", "{dir}/GEMINI.md"),
			},
		},
		{
			Name: "opencode", DisplayName: "OpenCode",
			ProjectDir: ".opencode", GlobalDir: ".config/opencode",
			Targets: map[kit.Type]Target{
				kit.TypeAgent:   perFile("{dir}/agent/{name}.md", "{dir}/agent/{name}.md", ".md"),
				kit.TypeCommand: perFile("{dir}/command/{name}.md", "{dir}/command/{name}.md", ".md"),
				kit.TypeSkill:   perFile("{dir}/skill/{name}/SKILL.md", "{dir}/skill/{name}/SKILL.md", ".md"),
				kit.TypeConfig:  singleFile("", "{dir}/AGENTS.md"),
			},
		},
		{
			Name: "cursor", DisplayName: "Cursor",
			ProjectDir: ".cursor", GlobalDir: ".cursor",
			Targets: map[kit.Type]Target{
				kit.TypeCommand: perFile("{dir}/commands/{name}.md", "{dir}/commands/{name}.md", ".md"),
				kit.TypeRules:   perFile("{dir}/rules/{name}.mdc", "", ".mdc"),
			},
		},
		{
			Name: "windsurf", DisplayName: "Windsurf",
			ProjectDir: ".windsurf", GlobalDir: ".codeium/windsurf",
			Targets: map[kit.Type]Target{
				kit.TypeCommand: perFile("{dir}/workflows/{name}.md", "{dir}/global_workflows/{name}.md", ".md"),
				kit.TypeRules:   perFile("{dir}/rules/{name}.md", "", ".md"),
				kit.TypeConfig:  singleFile("", "{dir}/memories/global_rules.md"),
			},
		},
		{
			Name: "cline", DisplayName: "Cline",
			ProjectDir: ".clinerules", GlobalDir: "Documents/Cline",
			Targets: map[kit.Type]Target{
				kit.TypeCommand: perFile("{dir}/workflows/{name}.md", "{dir}/Workflows/{name}.md", ".md"),
				kit.TypeRules:   perFile("{dir}/{name}.md", "{dir}/Rules/{name}.md", ".md"),
			},
		},
		{
			Name: "roo", DisplayName: "Roo Code",
			ProjectDir: ".roo", GlobalDir: ".roo",
			Targets: map[kit.Type]Target{
				kit.TypeCommand: perFile("{dir}/commands/{name}.md", "{dir}/commands/{name}.md", ".md"),
				kit.TypeRules:   perFile("{dir}/rules/{name}.md", "{dir}/rules/{name}.md", ".md"),
			},
		},
		{
			Name: "kilo", DisplayName: "Kilo Code",
			ProjectDir: ".kilocode", GlobalDir: ".kilocode",
			Targets: map[kit.Type]Target{
				kit.TypeCommand: perFile("{dir}/workflows/{name}.md", "{dir}/workflows/{name}.md", ".md"),
				kit.TypeRules:   perFile("{dir}/rules/{name}.md", "{dir}/rules/{name}.md", ".md"),
			},
		},
		{
			Name: "copilot", DisplayName: "GitHub Copilot",
			ProjectDir: ".github", GlobalDir: ".copilot",
			Targets: map[kit.Type]Target{
				kit.TypeAgent:   perFile("{dir}/agents/{name}.agent.md", "{dir}/agents/{name}.agent.md", ".agent.md"),
				kit.TypeCommand: perFile("{dir}/prompts/{name}.prompt.md", "", ".prompt.md"),
				kit.TypeConfig:  singleFile("{dir}/copilot-instructions.md", ""),
				kit.TypeRules:   perFile("{dir}/instructions/{name}.instructions.md", "", ".instructions.md"),
			},
		},
		{
			Name: "goose", DisplayName: "Goose",
			ProjectDir: ".", GlobalDir: ".config/goose",
			Targets: map[kit.Type]Target{
				kit.TypeConfig: singleFile("{dir}/.goosehints", "{dir}/.goosehints"),
			},
		},
		{
			Name: "amp", DisplayName: "Amp",
			ProjectDir: ".agents", GlobalDir: ".config/amp",
			Targets: map[kit.Type]Target{
				kit.TypeCommand: perFile("{dir}/commands/{name}.md", "{dir}/commands/{name}.md", ".md"),
				kit.TypeSkill:   perFile("{dir}/skills/{name}/SKILL.md", "{dir}/skills/{name}/SKILL.md", ".md"),
				kit.TypeConfig:  singleFile("AGENT.md", "{dir}/AGENTS.md"),
			},
		},
		{
			Name: "antigravity", DisplayName: "Antigravity",
			ProjectDir: ".agent", GlobalDir: ".gemini/antigravity",
			Targets: map[kit.Type]Target{
				kit.TypeCommand: perFile("{dir}/workflows/{name}.md", "{dir}/global_workflows/{name}.md", ".md"),
				kit.TypeRules:   perFile("{dir}/rules/{name}.md", "", ".md"),
			},
		},
		{
			Name: "qwen", DisplayName: "Qwen Code",
			ProjectDir: ".qwen", GlobalDir: ".qwen",
			Targets: map[kit.Type]Target{
				kit.TypeAgent:   perFile("{dir}/agents/{name}.md", "{dir}/agents/{name}.md", ".md"),
				kit.TypeCommand: perFile("{dir}/commands/{name}.toml", "{dir}/commands/{name}.toml", ".toml"),
				kit.TypeConfig:  singleFile("QWEN.md", "{dir}/QWEN.md"),
			},
		},
		{
			Name: "droid", DisplayName: "Factory Droid",
			ProjectDir: ".factory", GlobalDir: ".factory",
			Targets: map[kit.Type]Target{
				kit.TypeAgent:   perFile("{dir}/droids/{name}.md", "{dir}/droids/{name}.md", ".md"),
				kit.TypeCommand: perFile("{dir}/commands/{name}.md", "{dir}/commands/{name}.md", ".md"),
				kit.TypeSkill:   perFile("{dir}/skills/{name}/SKILL.md", "{dir}/skills/{name}/SKILL.md", ".md"),
			},
		},
	}

	m := make(map[string]Provider, len(list))
	for _, p := range list {
		m[p.Name] = p
	}
	return m
}
