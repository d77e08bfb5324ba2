package match

import "strings"

// TechVocabulary lists generic technical terms used for the similarity bonus
// and for missing skill suggestions.
var TechVocabulary = []string{
	"Python", "Java", "JavaScript", "TypeScript", "Go", "Rust", "C++", "C#",
	"Ruby", "PHP", "Kotlin", "Swift", "Scala",
	"React", "Angular", "Vue", "Node.js", "Django", "Flask", "Spring",
	"SQL", "PostgreSQL", "MySQL", "MongoDB", "Redis", "Elasticsearch",
	"AWS", "Azure", "GCP", "Docker", "Kubernetes", "Terraform",
	"Machine Learning", "TensorFlow", "PyTorch", "Git", "CI/CD", "Linux",
	"Agile", "REST", "GraphQL", "Microservices", "Kafka",
}

// containsWord reports whether term occurs in text without touching other
// word characters. Both are expected in lower case.
func containsWord(text, term string) bool {
	if term == "" {
		return false
	}
	for start := 0; start < len(text); {
		idx := strings.Index(text[start:], term)
		if idx < 0 {
			return false
		}
		idx += start
		end := idx + len(term)
		if (idx == 0 || !isWordByte(text[idx-1])) && (end == len(text) || !isWordByte(text[end])) {
			return true
		}
		start = idx + 1
	}
	return false
}

func isWordByte(b byte) bool {
	switch {
	case b >= 'a' && b <= 'z', b >= 'A' && b <= 'Z', b >= '0' && b <= '9':
		return true
	case b == '+', b == '#', b == '_':
		return true
	default:
		return false
	}
}

// skillInText matches a candidate skill case-insensitively as a substring.
// Skills of two characters or fewer ("Go", "R", "C") must stand alone.
func skillInText(text, skill string) bool {
	skill = strings.ToLower(strings.TrimSpace(skill))
	if skill == "" {
		return false
	}
	if len(skill) <= 2 {
		return containsWord(text, skill)
	}
	return strings.Contains(text, skill)
}
