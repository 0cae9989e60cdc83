// Package classifier turns review text into a sentiment distribution using a
// sequence-classification artifact loaded from disk.
//
// An artifact is a directory with three files:
//
//	config.json   id2label, max_position_embeddings, hidden_size (or dim), do_lower_case
//	vocab.txt     WordPiece vocabulary, one token per line, line number is the id
//	weights.json  {"embeddings": [[...]], "classifier": {"weight": [[...]], "bias": [...]}}
//
// The model is the mean of the token embeddings, [CLS] and [SEP] included,
// followed by a linear head and softmax. A Hugging Face DistilBERT checkpoint
// directory supplies config.json and vocab.txt unchanged. weights.json is
// built from it in two steps:
//
//  1. embeddings: the checkpoint's distilbert.embeddings.word_embeddings.weight
//     matrix, vocab_size rows of dim floats, written as nested arrays.
//  2. classifier: a 3 x dim logistic-regression head fitted on the mean-pooled
//     embeddings of labelled reviews, rows in Negative, Neutral, Positive order.
//
// The checkpoint's own pre_classifier and classifier layers expect
// transformer outputs and cannot be reused as the head.
package classifier
