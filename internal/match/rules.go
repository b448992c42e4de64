package match

import (
	"os"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// FacultyKeywordRule maps affiliation keywords to a faculty code. Used as
// a fallback when no department keyword matches.
type FacultyKeywordRule struct {
	Keywords []string `yaml:"keywords"`
	Faculty  string   `yaml:"faculty"`
}

// Rules holds the keyword tables driving faculty/OU resolution from
// affiliation text plus the university marker list. Defaults are embedded;
// a YAML rules file can override any section.
type Rules struct {
	// Faculties maps short codes to full English names.
	Faculties map[string]string `yaml:"faculties"`
	// Departments maps full department names to their faculty code.
	Departments map[string]string `yaml:"departments"`
	// FacultyKeywords is the ordered fallback rule list.
	FacultyKeywords []FacultyKeywordRule `yaml:"faculty_keywords"`
	// Markers are university-indicative tokens; their presence in an
	// otherwise unmatched affiliation escalates the record.
	Markers []string `yaml:"markers"`

	// deptKeywords: normalized keyword → (department, faculty code),
	// built by compile. Includes a variant without the leading
	// "Department of"/"Centre" word so abbreviated WoS forms still hit.
	deptKeywords map[string]deptEntry
	// deptKeys holds the keyword set sorted, so lookups scan in a fixed
	// order and equal-length ties always resolve the same way.
	deptKeys   []string
	markerKeys []string
}

type deptEntry struct {
	department string
	faculty    string
}

// DefaultRules returns the built-in tables for Tomas Bata University.
func DefaultRules() *Rules {
	r := &Rules{
		Faculties:       defaultFaculties(),
		Departments:     defaultDepartments(),
		FacultyKeywords: defaultFacultyKeywords(),
		Markers:         defaultMarkers(),
	}
	r.compile()
	return r
}

// LoadRules reads a YAML rules file layered over the defaults. Sections
// present in the file replace the corresponding default section wholesale.
func LoadRules(path string) (*Rules, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "rules: read %s", path)
	}
	var override Rules
	if err := yaml.Unmarshal(raw, &override); err != nil {
		return nil, eris.Wrapf(err, "rules: parse %s", path)
	}

	r := DefaultRules()
	if len(override.Faculties) > 0 {
		r.Faculties = override.Faculties
	}
	if len(override.Departments) > 0 {
		r.Departments = override.Departments
	}
	if len(override.FacultyKeywords) > 0 {
		r.FacultyKeywords = override.FacultyKeywords
	}
	if len(override.Markers) > 0 {
		r.Markers = override.Markers
	}
	r.compile()
	return r, nil
}

func (r *Rules) compile() {
	r.deptKeywords = make(map[string]deptEntry, len(r.Departments)*2)
	for dept, fac := range r.Departments {
		key := Normalize(dept)
		r.deptKeywords[key] = deptEntry{department: dept, faculty: fac}
		// Variant without the leading word ("department of x" → "of x"
		// is useless, so drop the generic head only on 3+ word names).
		words := strings.Split(key, " ")
		if len(words) > 2 {
			short := strings.Join(words[1:], " ")
			if _, ok := r.deptKeywords[short]; !ok {
				r.deptKeywords[short] = deptEntry{department: dept, faculty: fac}
			}
		}
	}
	r.deptKeys = r.deptKeys[:0]
	for key := range r.deptKeywords {
		r.deptKeys = append(r.deptKeys, key)
	}
	sort.Strings(r.deptKeys)

	r.markerKeys = r.markerKeys[:0]
	for _, m := range r.Markers {
		if key := Normalize(m); key != "" {
			r.markerKeys = append(r.markerKeys, key)
		}
	}
}

// ResolveFacultyOU derives (faculty code, department name) evidence from
// affiliation text. The longest matching department keyword wins, equal
// lengths resolving to the lexicographically smaller keyword; when no
// department matches, the ordered faculty keyword rules decide the faculty
// and the department stays empty.
func (r *Rules) ResolveFacultyOU(text string) (faculty, ou string) {
	norm := Normalize(text)

	bestLen := 0
	for _, key := range r.deptKeys {
		if len(key) > bestLen && strings.Contains(norm, key) {
			bestLen = len(key)
			entry := r.deptKeywords[key]
			faculty, ou = entry.faculty, entry.department
		}
	}
	if faculty != "" {
		return faculty, ou
	}

	for _, rule := range r.FacultyKeywords {
		for _, kw := range rule.Keywords {
			if strings.Contains(norm, Normalize(kw)) {
				return rule.Faculty, ""
			}
		}
	}
	return "", ""
}

// HasMarker reports whether normalized affiliation text contains a
// university-indicative token, returning the first matching marker.
func (r *Rules) HasMarker(text string) (bool, string) {
	norm := Normalize(text)
	for _, key := range r.markerKeys {
		if strings.Contains(norm, key) {
			return true, key
		}
	}
	return false, ""
}

func defaultFaculties() map[string]string {
	return map[string]string{
		"FT":   "Faculty of Technology",
		"FAME": "Faculty of Management and Economics",
		"FAI":  "Faculty of Applied Informatics",
		"FHS":  "Faculty of Humanities",
		"FMK":  "Faculty of Multimedia Communications",
		"FLKR": "Faculty of Logistics and Crisis Management",
	}
}

func defaultDepartments() map[string]string {
	return map[string]string{
		// FT
		"Department of Food Analysis and Chemistry":                "FT",
		"Department of Physics and Materials Engineering":          "FT",
		"Department of Chemistry":                                  "FT",
		"Department of Environmental Protection Engineering":       "FT",
		"Department of Polymer Engineering":                        "FT",
		"Department of Food Technology":                            "FT",
		"Department of Fat, Surfactant and Cosmetics Technology":   "FT",
		"Department of Production Engineering":                     "FT",
		// FAME
		"Department of Economics":                                      "FAME",
		"Department of Management and Marketing":                       "FAME",
		"Department of Business Administration":                        "FAME",
		"Department of Industrial Engineering and Information Systems": "FAME",
		"Department of Finance and Accounting":                         "FAME",
		"Department of Statistics and Quantitative Methods":            "FAME",
		"Center for Applied Economic Research":                         "FAME",
		// FAI
		"Department of Informatics and Artificial Intelligence": "FAI",
		"Department of Computer and Communication Systems":      "FAI",
		"Department of Automation and Control Engineering":      "FAI",
		"Department of Electronics and Measurements":            "FAI",
		"Department of Security Engineering":                    "FAI",
		"Department of Mathematics":                             "FAI",
		"Department of Process Control":                         "FAI",
		"ICT Technology Park":                                   "FAI",
		// FHS
		"Department of Modern Languages and Literatures": "FHS",
		"Language Centre":                                "FHS",
		"Department of Pedagogical Sciences":             "FHS",
		"Department of School Education":                 "FHS",
		"Department of Health Care Sciences":             "FHS",
		// FMK
		"Department of Marketing Communications": "FMK",
		"Department of Theoretical Studies":      "FMK",
		// FLKR
		"Department of Logistics":              "FLKR",
		"Department of Crisis Management":      "FLKR",
		"Department of Population Protection":  "FLKR",
		"Department of Environmental Security": "FLKR",
	}
}

func defaultFacultyKeywords() []FacultyKeywordRule {
	return []FacultyKeywordRule{
		{Faculty: "FT", Keywords: []string{"fac technol", "dept polymer", "dept chem", "dept food", "dept phys", "polymer engn", "vavreckova", "nam t g masaryka"}},
		{Faculty: "FAME", Keywords: []string{"fac management", "fac econ", "dept business", "dept econ", "dept management", "dept financ", "mostni 5139"}},
		{Faculty: "FAI", Keywords: []string{"fac appl informat", "appl informat", "dept informat", "dept automat", "dept electron", "dept secur engn", "dept math", "dept proc control", "cebia"}},
		{Faculty: "FLKR", Keywords: []string{"fac logist", "crisis management", "dept logist", "uherske hradiste"}},
		{Faculty: "FHS", Keywords: []string{"fac humanities", "dept pedag", "dept hlth", "dept lang", "language centre", "humanities"}},
		{Faculty: "FMK", Keywords: []string{"fac multimedia", "multimedia commun", "dept marketing commun", "dept theoret"}},
	}
}

func defaultMarkers() []string {
	return []string{
		"tomas bata univ",
		"tomas bata university",
		"univerzita tomase bati",
		"utb zlin",
		"t. bata univ",
		"zlin",
		"utb",
		"tbu",
	}
}
