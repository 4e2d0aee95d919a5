package extract

import "regexp"

// Ordered pattern rules per field. Rules are iterated deterministically and
// the first structurally valid match wins, so extraction is reproducible for
// a given observation bag. Several patterns exist only to absorb common OCR
// confusions (O/0, stray spacing) or the Arabic-script labels found on the
// documents this service handles.

var passportNumberPatterns = compileAll(
	`(?i)P\s*[0-9]{8,9}`,
	`(?i)P[0-9]{8,9}`,
	`(?i)Passport\s*No\.?\s*:?\s*([A-Z0-9]{8,10})`,
	`(?i)No\.?\s*:?\s*([A-Z0-9]{8,10})`,
	`(?i)([A-Z]{1,2}\s*[0-9]{6,9})`,
	`(?i)P\s*O\s*[0-9]{7,9}`,
	`(?i)[PD][0-9O]{8,9}`,
	`جواز\s*رقم\s*:?\s*([A-Z0-9]{8,10})`,
)

var nationalIDPatterns = compileAll(
	`\d{3}[-\s]?\d{4}[-\s]?\d{4,5}`,
	`\d{3}\s*[-\s]?\s*\d{4}\s*[-\s]?\s*\d{4,5}`,
	`National\s*No\.?\s*:?\s*(\d{3}[-\s]?\d{4}[-\s]?\d{4,5})`,
	`\d{11,12}`,
	`\d{3}\d{4}\d{4,5}`,
	`[0-9]{3}[\s\-.][0-9]{4}[\s\-.][0-9]{4,5}`,
	`الرقم\s*الوطني\s*:?\s*(\d{3}[-\s]?\d{4}[-\s]?\d{4,5})`,
)

var datePatterns = compileAll(
	`\d{2}[-/]\d{2}[-/]\d{4}`,
	`\d{2}\s*[-/]\s*\d{2}\s*[-/]\s*\d{4}`,
	`\d{1,2}[-/]\d{1,2}[-/]\d{4}`,
	`\d{2}\.\d{2}\.\d{4}`,
	`\d{2}\s+\d{2}\s+\d{4}`,
	`[0-3][0-9][\s\-/.][0-1][0-9][\s\-/.][1-2][0-9]{3}`,
	`\d{4}[-/]\d{2}[-/]\d{2}`,
)

var namePatterns = compileAll(
	`[A-Z]{3,}\s+[A-Z]{3,}(?:\s+[A-Z]{3,})*`,
	`[A-Z][A-Z\s\-']{10,50}`,
	`(?:Name|NAME)\s*:?\s*([A-Z\s]+)`,
	`Full\s*Name\s*:?\s*([A-Z\s]+)`,
	`(?:[A-Z]{2,}\s+){2,6}[A-Z]{2,}`,
	`[A-Z]+(?:\s+[A-Z]+){1,5}`,
	`الاسم\s*:?\s*([A-Z\s]+)`,
	`الاسم\s*الكامل\s*:?\s*([A-Z\s]+)`,
)

var sexPatterns = compileAll(
	`(?i)\b[F/]\b`,
	`(?i)\b[M/]\b`,
	`(?i)(?:Sex|Gender)\s*:?\s*([MF])`,
	`(?i)(?:Sex|Gender)\s*:?\s*([MF])/`,
	`(?i)[MF]\s*/`,
	`(?i)[MF]/`,
	`الجنس\s*:?\s*([MF])`,
	`ذكر|أنثى`,
	`(?i)(?:Male|Female)\s*:?\s*([MF])`,
	`(?i)(?:MALE|FEMALE)\s*:?\s*([MF])`,
	`(?i)(?:M|F)\s*:?\s*([MF])`,
	`(?i)(?:MALE|FEMALE)`,
	`(?:ذكر|أنثى)\s*:?\s*([MF])`,
	`(?:ذكر|أنثى)\s*:?\s*([MF])/`,
)

// Gazetteer of places appearing on the supported documents, Latin and Arabic
// script. First substring hit wins.
var knownPlaces = []string{
	"KHARTOUM", "OMDURMAN", "BAHRI", "KASSALA", "PORTSUDAN",
	"NYALA", "ELOBEID", "GEDAREF", "WAD MADANI", "KOSTI",
	"ALFASHER", "DAMAZIN", "KADUGLI", "DONGOLA", "ATBARA",
	"SENNAR", "RABAK", "GENEINA", "DILLING", "ALAYYAT",
	"UMM RUWABA", "ZALINGEI", "ALQADARIF", "AD DOUIEM",
	"الخرطوم", "أم درمان", "بحري", "كسلا", "بورتسودان",
	"نيالا", "الأبيض", "القضارف", "ود مدني", "كوستي",
	"الفاشر", "الدمازين", "كادقلي", "دنقلا", "عطبرة",
	"KUWAIT", "الكويت", "RIYADH", "الرياض", "JEDDAH", "جدة", "MECCA", "مكة",
	"SAUDI ARABIA", "المملكة العربية السعودية",
	"SAUDI", "السعودية",
	"IRAN", "إيران", "TUNISIA", "تونس", "ALGERIA", "الجزائر",
	"MOROCCO", "المغرب", "LIBYA", "ليبيا", "TURKEY", "تركيا", "SYRIA", "سوريا",
	"LEBANON", "لبنان", "JORDAN", "الأردن", "IRAQ", "العراق", "EGYPT", "مصر",
	"MOGTARBEEN", "المغتربين", "ALBYNEIA", "البينة",
}

var nationalityIndicators = []string{
	"SDN", "SUDAN", "REPUBLIC OF SUDAN", "REPUBLIC OF THE SUDAN",
	"السودان", "جمهورية السودان", "SUDANESE", "سوداني",
}

// Document boilerplate terms that disqualify a name candidate.
var nonNameWords = []string{
	"REPUBLIC", "SUDAN", "PASSPORT", "TYPE", "NATIONAL",
	"NUMBER", "DATE", "BIRTH", "ISSUE", "EXPIRY", "SEX",
	"PLACE", "NATIONALITY", "SIGNATURE", "HOLDER", "AUTHORITY",
	"GENDER", "COUNTRY", "CODE", "DOCUMENT", "IDENTIFICATION",
	"جمهورية", "السودان", "جواز", "نوع", "رقم",
	"تاريخ", "ميلاد", "إصدار", "انتهاء", "مكان",
}

var (
	passportNumberShape = regexp.MustCompile(`^P[0-9]{8,9}$`)
	nationalIDShape     = regexp.MustCompile(`^\d{3}-\d{4}-\d{4,5}$`)
	separatorRun        = regexp.MustCompile(`[\s.]+`)
	slashRun            = regexp.MustCompile(`/+`)
)

func compileAll(patterns ...string) []*regexp.Regexp {
	compiled := make([]*regexp.Regexp, len(patterns))
	for i, pattern := range patterns {
		compiled[i] = regexp.MustCompile(pattern)
	}
	return compiled
}
