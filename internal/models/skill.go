package models

// GenSkill представляет общую категорию навыков из каталога
type GenSkill struct {
	ID       int    `json:"genskills_id"`
	Category string `json:"gen_categ"`
}

// SpecSkill представляет конкретный навык внутри общей категории
type SpecSkill struct {
	ID         int    `json:"specskills_id"`
	Name       string `json:"spec_name"`
	GenSkillID int    `json:"genskills_id"`
}

// SkillGroup представляет навыки пользователя, сгруппированные по категории
type SkillGroup struct {
	Category string   `json:"category"`
	Skills   []string `json:"skills"`
}
