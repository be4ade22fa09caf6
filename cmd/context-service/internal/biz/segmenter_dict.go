package biz

// 内置中文词典与停用词表。分词能力通过 Tokenizer 接口暴露，
// 替换外部分词库时不需要改动评分与选择逻辑。

// defaultPhrases3 三字常用词
var defaultPhrases3 = []string{
	"为什么", "怎么样", "怎么办", "差不多", "不知道", "有没有",
	"对不起", "没关系", "不客气", "没问题", "小伙伴", "朋友们",
	"聊聊天", "讲故事", "好不好", "可不可", "图书馆", "实验室",
	"计算机", "互联网", "人工智", "智能化", "程序员", "工程师",
	"意思是", "感兴趣", "冒险家", "魔法师", "炼金术", "吟游诗",
	"守护者", "旅行者", "占卜师", "任务书", "委托人", "酒馆里",
}

// defaultPhrases2 两字常用词
var defaultPhrases2 = []string{
	"你好", "谢谢", "再见", "什么", "怎么", "为何", "哪里", "这个",
	"那个", "我们", "你们", "他们", "今天", "明天", "昨天", "现在",
	"时间", "地方", "东西", "事情", "问题", "回答", "故事", "旅行",
	"冒险", "魔法", "武器", "装备", "任务", "委托", "酒馆", "旅店",
	"城市", "村庄", "森林", "草原", "山脉", "河流", "大海", "天空",
	"喜欢", "讨厌", "开心", "难过", "生气", "害怕", "惊讶", "期待",
	"觉得", "认为", "希望", "需要", "可以", "应该", "能够", "愿意",
	"音乐", "电影", "游戏", "小说", "美食", "咖啡", "茶水", "美酒",
	"战斗", "防御", "攻击", "治疗", "法术", "剑术", "弓箭", "盾牌",
	"朋友", "伙伴", "敌人", "队友", "师父", "徒弟", "公会", "佣兵",
}

// defaultStopwords 停用词（中英混合）
var defaultStopwords = []string{
	"的", "了", "着", "是", "在", "和", "与", "或", "而", "也",
	"都", "就", "还", "又", "很", "too", "啊", "呀", "吧", "吗",
	"呢", "哦", "嗯", "哈", "嘛", "呗", "啦", "之", "于", "以",
	"及", "其", "被", "把", "让", "给", "对", "从", "向", "到",
	"a", "an", "the", "is", "are", "was", "were", "be", "been",
	"i", "you", "he", "she", "it", "we", "they", "me", "him", "her",
	"and", "or", "but", "if", "of", "at", "by", "for", "with",
	"to", "in", "on", "that", "this", "these", "those", "as", "so",
}

func newPhraseDict() map[string]struct{} {
	dict := make(map[string]struct{}, len(defaultPhrases2)+len(defaultPhrases3))
	for _, p := range defaultPhrases2 {
		dict[p] = struct{}{}
	}
	for _, p := range defaultPhrases3 {
		dict[p] = struct{}{}
	}
	return dict
}

func newStopwordSet() map[string]struct{} {
	set := make(map[string]struct{}, len(defaultStopwords))
	for _, w := range defaultStopwords {
		set[w] = struct{}{}
	}
	return set
}
